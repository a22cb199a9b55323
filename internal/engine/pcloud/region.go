package pcloud

// Region selects the pCloud API endpoint, per spec §4.1. It is a small
// closed set; a custom base URL can only be set through
// ClientConfig.BaseURLOverride, not through Region.
type Region string

const (
	// US routes requests to api.pcloud.com.
	US Region = "US"
	// EU routes requests to eapi.pcloud.com.
	EU Region = "EU"
)

// BaseURL returns the HTTPS origin for r, defaulting to US for any
// unrecognized value.
func (r Region) BaseURL() string {
	switch r {
	case EU:
		return "https://eapi.pcloud.com"
	default:
		return "https://api.pcloud.com"
	}
}
