package pcloud

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/pulsepoint/pulsepoint/internal/engine/pcerr"
)

// FileItem is a remote listing entry, per spec §3. Unknown fields are
// tolerated by the decoder; this struct only names the ones the engine
// uses.
type FileItem struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"isfolder"`
	Size     int64  `json:"size"`
	Modified string `json:"modified,omitempty"`
	FileID   string `json:"fileid,omitempty"`
}

// AccountInfo is the subset of pCloud's userinfo response the engine cares
// about.
type AccountInfo struct {
	Email     string `json:"email"`
	Quota     int64  `json:"quota"`
	UsedQuota int64  `json:"usedquota"`
}

type loginResponse struct {
	Auth string `json:"auth"`
}

// Login authenticates with a username and password and installs the
// returned token on c. The token is returned to the caller but the engine
// never logs or persists it itself (spec §1 Non-goals).
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	params := url.Values{
		"username": {username},
		"password": {password},
	}
	var out loginResponse
	if _, err := c.invoke(ctx, invocation{method: "userinfo", params: params, skipAuth: true}, &out); err != nil {
		return "", err
	}
	c.token = out.Auth
	return out.Auth, nil
}

// SetTokenAuth authenticates a pre-obtained token by validating it against
// the remote, mirroring a username/password login's installed-token effect.
func (c *Client) SetTokenAuth(ctx context.Context, token string) error {
	c.token = token
	_, err := c.AccountInfo(ctx)
	return err
}

type listFolderResponse struct {
	Metadata struct {
		Contents []FileItem `json:"contents"`
	} `json:"metadata"`
}

// ListFolder lists the contents of path.
func (c *Client) ListFolder(ctx context.Context, path string) ([]FileItem, error) {
	if c.token == "" {
		return nil, pcerr.New(pcerr.RemoteApplicationError, "not authenticated", nil)
	}
	params := url.Values{"path": {path}}
	var out listFolderResponse
	if _, err := c.invoke(ctx, invocation{method: "listfolder", params: params}, &out); err != nil {
		return nil, err
	}
	return out.Metadata.Contents, nil
}

// CreateFolder creates path with a single, non-recursive createfolder call:
// missing ancestors are not created. A folder that already exists counts as
// success.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	params := url.Values{"path": {path}}
	_, err := c.invoke(ctx, invocation{method: "createfolder", params: params}, &struct{}{})
	if err != nil && IsAlreadyExists(err) {
		return nil
	}
	return err
}

// DeleteFile deletes the file at path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	params := url.Values{"path": {path}}
	_, err := c.invoke(ctx, invocation{method: "deletefile", params: params}, &struct{}{})
	return err
}

// Rename moves or renames fromPath to toPath.
func (c *Client) Rename(ctx context.Context, fromPath, toPath string) error {
	params := url.Values{"path": {fromPath}, "topath": {toPath}}
	_, err := c.invoke(ctx, invocation{method: "renamefile", params: params}, &struct{}{})
	return err
}

type downloadLinkResponse struct {
	Hosts []string `json:"hosts"`
	Path  string   `json:"path"`
}

// GetDownloadLink resolves path to a direct streaming URL.
func (c *Client) GetDownloadLink(ctx context.Context, path string) (string, error) {
	params := url.Values{"path": {path}}
	var out downloadLinkResponse
	if _, err := c.invoke(ctx, invocation{method: "getfilelink", params: params}, &out); err != nil {
		return "", err
	}
	if len(out.Hosts) == 0 {
		return "", pcerr.New(pcerr.RemoteApplicationError, "no download host returned", nil)
	}
	return fmt.Sprintf("%s://%s%s", c.downloadScheme(), out.Hosts[0], out.Path), nil
}

// OpenDownload resolves path to a direct link and opens a streaming read of
// it, returning the body and its declared content length (-1 if unknown).
func (c *Client) OpenDownload(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	link, err := c.GetDownloadLink(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	return c.openDirectStream(ctx, link)
}

type uploadResponse struct {
	Metadata []FileItem `json:"metadata"`
}

// UploadFile uploads body as name into remoteFolder, the simple
// (non-chunked) path. size is not used: the body is streamed without a
// declared Content-Length.
func (c *Client) UploadFile(ctx context.Context, remoteFolder, name string, body io.Reader, size int64) (*FileItem, error) {
	params := url.Values{
		"path":     {remoteFolder},
		"filename": {name},
	}
	var out uploadResponse
	if _, err := c.invoke(ctx, invocation{
		method:          "uploadfile",
		params:          params,
		body:            body,
		bodyContentType: "application/octet-stream",
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Metadata) == 0 {
		return nil, pcerr.New(pcerr.IntegrityError, "upload reported success with no file metadata", nil)
	}
	return &out.Metadata[0], nil
}

type uploadIDResponse struct {
	UploadID int64 `json:"uploadid"`
}

// BeginChunkedUpload starts a chunked upload session, used for files above
// the chunked-upload threshold (default 2 GiB, see GLOSSARY).
func (c *Client) BeginChunkedUpload(ctx context.Context, chunk []byte) (int64, error) {
	var out uploadIDResponse
	if _, err := c.invoke(ctx, invocation{
		method:          "upload_create",
		params:          url.Values{},
		body:            byteReader(chunk),
		bodyContentType: "application/octet-stream",
	}, &out); err != nil {
		return 0, err
	}
	return out.UploadID, nil
}

// WriteChunk writes chunk at offset within the chunked upload identified by
// uploadID.
func (c *Client) WriteChunk(ctx context.Context, uploadID int64, offset int64, chunk []byte) error {
	params := url.Values{
		"uploadid":     {strconv.FormatInt(uploadID, 10)},
		"uploadoffset": {strconv.FormatInt(offset, 10)},
	}
	_, err := c.invoke(ctx, invocation{
		method:          "upload_write",
		params:          params,
		body:            byteReader(chunk),
		bodyContentType: "application/octet-stream",
	}, &struct{}{})
	return err
}

// FinishChunkedUpload finalizes the chunked upload identified by uploadID
// into remoteFolder/name.
func (c *Client) FinishChunkedUpload(ctx context.Context, uploadID int64, remoteFolder, name string) (*FileItem, error) {
	params := url.Values{
		"uploadid": {strconv.FormatInt(uploadID, 10)},
		"path":     {remoteFolder},
		"filename": {name},
	}
	var out uploadResponse
	if _, err := c.invoke(ctx, invocation{method: "upload_save", params: params}, &out); err != nil {
		return nil, err
	}
	if len(out.Metadata) == 0 {
		return nil, pcerr.New(pcerr.IntegrityError, "chunked upload reported success with no file metadata", nil)
	}
	return &out.Metadata[0], nil
}

// AccountInfo returns the authenticated account's summary.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var out AccountInfo
	if _, err := c.invoke(ctx, invocation{method: "userinfo", params: url.Values{}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func byteReader(b []byte) io.Reader {
	return &byteSliceReader{data: b}
}

type byteSliceReader struct {
	data []byte
	pos  int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
