// Package pctest provides an in-memory fake of the pCloud remote API for use
// in engine package tests, generalized from the teacher's mock-provider
// pattern (internal/providers/mock/drive.go) to the pCloud wire protocol
// described in spec.md §6. It lets C1-C9 tests exercise real HTTP round
// trips (via httptest.Server) without a network dependency.
package pctest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
)

// Entry is one file or folder in the fake filesystem.
type Entry struct {
	Name     string
	IsFolder bool
	Size     int64
	Modified string
	Content  []byte
}

// Server is an in-memory fake of the pCloud API.
type Server struct {
	mu           sync.Mutex
	httpServer   *httptest.Server
	files        map[string]*Entry // full path -> entry
	folders      map[string]bool   // full path -> exists
	token        string
	nextUploadID int64
	uploads      map[int64]*pendingUpload

	// FailNextN, when >0, makes the next N requests return HTTP 503 before
	// falling through to normal handling, for retry-path tests.
	FailNextN int

	// Username and Password, when both set, make userinfo-with-credentials
	// reject any other pair with a 2000 (invalid credentials) result. Left
	// unset, any username/password is accepted.
	Username string
	Password string
}

type pendingUpload struct {
	folder string
	name   string
	data   []byte
}

// NewServer starts an empty fake pCloud server rooted at "/". Seed it with
// PutFile/PutFolder.
func NewServer() *Server {
	s := &Server{
		files:   make(map[string]*Entry),
		folders: map[string]bool{"/": true},
		uploads: make(map[int64]*pendingUpload),
		token:   "test-token",
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the fake server's base URL, suitable for pointing a
// pcloud.Client at directly in tests that construct the client manually.
func (s *Server) URL() string { return s.httpServer.URL }

// Token returns the token accepted by the fake server.
func (s *Server) Token() string { return s.token }

// Close shuts down the underlying httptest.Server.
func (s *Server) Close() { s.httpServer.Close() }

// PutFile seeds fullPath with content, creating ancestor folders implicitly.
func (s *Server) PutFile(fullPath string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFolders(path.Dir(fullPath))
	s.files[fullPath] = &Entry{
		Name:     path.Base(fullPath),
		IsFolder: false,
		Size:     int64(len(content)),
		Content:  content,
	}
}

// PutFolder seeds fullPath as an existing folder.
func (s *Server) PutFolder(fullPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFolders(fullPath)
}

func (s *Server) ensureFolders(p string) {
	for p != "" && p != "." && p != "/" {
		s.folders[p] = true
		p = path.Dir(p)
	}
	s.folders["/"] = true
}

// ListFiles returns a snapshot of every file path currently stored, for
// assertions in tests.
func (s *Server) ListFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.FailNextN > 0 {
		s.FailNextN--
		s.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, "/")

	switch method {
	case "userinfo":
		s.handleUserInfo(w, r)
	case "listfolder":
		s.handleListFolder(w, r)
	case "createfolder":
		s.handleCreateFolder(w, r)
	case "deletefile":
		s.handleDeleteFile(w, r)
	case "renamefile":
		s.handleRename(w, r)
	case "getfilelink":
		s.handleGetFileLink(w, r)
	case "uploadfile":
		s.handleUploadFile(w, r)
	case "upload_create":
		s.handleUploadCreate(w, r)
	case "upload_write":
		s.handleUploadWrite(w, r)
	case "upload_save":
		s.handleUploadSave(w, r)
	case "download":
		s.handleDownload(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	s.mu.Lock()
	expectedUser, expectedPass, token := s.Username, s.Password, s.token
	s.mu.Unlock()

	if username != "" || password != "" {
		if expectedUser != "" && (username != expectedUser || password != expectedPass) {
			s.writeJSON(w, map[string]interface{}{"result": 2000, "error": "Invalid credentials."})
			return
		}
	}

	s.writeJSON(w, map[string]interface{}{
		"result": 0, "email": "user@example.com",
		"quota": int64(1 << 40), "usedquota": int64(0),
		"auth": token,
	})
}

func (s *Server) handleListFolder(w http.ResponseWriter, r *http.Request) {
	p := r.FormValue("path")
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.folders[p] {
		s.writeJSON(w, map[string]interface{}{"result": 2005, "error": "Directory does not exist."})
		return
	}

	var contents []map[string]interface{}
	for fp, e := range s.files {
		if path.Dir(fp) == p {
			contents = append(contents, map[string]interface{}{
				"name": e.Name, "isfolder": false, "size": e.Size, "modified": e.Modified,
			})
		}
	}
	for fp := range s.folders {
		if fp != p && path.Dir(fp) == p {
			contents = append(contents, map[string]interface{}{
				"name": path.Base(fp), "isfolder": true, "size": int64(0),
			})
		}
	}

	s.writeJSON(w, map[string]interface{}{
		"result":   0,
		"metadata": map[string]interface{}{"contents": contents},
	})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	p := r.FormValue("path")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.folders[p] {
		s.writeJSON(w, map[string]interface{}{"result": 2004, "error": "Directory already exists."})
		return
	}
	s.ensureFolders(p)
	s.writeJSON(w, map[string]interface{}{"result": 0})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	p := r.FormValue("path")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[p]; !ok {
		s.writeJSON(w, map[string]interface{}{"result": 2009, "error": "File not found."})
		return
	}
	delete(s.files, p)
	s.writeJSON(w, map[string]interface{}{"result": 0})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	from := r.FormValue("path")
	to := r.FormValue("topath")
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.files[from]
	if !ok {
		s.writeJSON(w, map[string]interface{}{"result": 2009, "error": "File not found."})
		return
	}
	delete(s.files, from)
	e.Name = path.Base(to)
	s.files[to] = e
	s.ensureFolders(path.Dir(to))
	s.writeJSON(w, map[string]interface{}{"result": 0})
}

func (s *Server) handleGetFileLink(w http.ResponseWriter, r *http.Request) {
	p := r.FormValue("path")
	s.mu.Lock()
	_, ok := s.files[p]
	host := strings.TrimPrefix(s.httpServer.URL, "https://")
	host = strings.TrimPrefix(host, "http://")
	s.mu.Unlock()
	if !ok {
		s.writeJSON(w, map[string]interface{}{"result": 2009, "error": "File not found."})
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"result": 0,
		"hosts":  []string{host},
		"path":   "/download?path=" + url.QueryEscape(p),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	s.mu.Lock()
	e, ok := s.files[p]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Content)))
	w.Write(e.Content)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("path")
	name := r.URL.Query().Get("filename")
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fullPath := path.Join(folder, name)
	s.files[fullPath] = &Entry{Name: name, Size: int64(len(data)), Content: data}
	s.writeJSON(w, map[string]interface{}{
		"result":   0,
		"metadata": []map[string]interface{}{{"name": name, "isfolder": false, "size": int64(len(data))}},
	})
}

func (s *Server) handleUploadCreate(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.nextUploadID++
	id := s.nextUploadID
	s.uploads[id] = &pendingUpload{data: append([]byte{}, data...)}
	s.mu.Unlock()
	s.writeJSON(w, map[string]interface{}{"result": 0, "uploadid": id})
}

func (s *Server) handleUploadWrite(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.URL.Query().Get("uploadid"), 10, 64)
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	u, ok := s.uploads[id]
	if ok {
		u.data = append(u.data, data...)
	}
	s.mu.Unlock()
	if !ok {
		s.writeJSON(w, map[string]interface{}{"result": 2067, "error": "Upload id not found."})
		return
	}
	s.writeJSON(w, map[string]interface{}{"result": 0})
}

func (s *Server) handleUploadSave(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.FormValue("uploadid"), 10, 64)
	folder := r.FormValue("path")
	name := r.FormValue("filename")
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		s.writeJSON(w, map[string]interface{}{"result": 2067, "error": "Upload id not found."})
		return
	}
	fullPath := path.Join(folder, name)
	s.files[fullPath] = &Entry{Name: name, Size: int64(len(u.data)), Content: u.data}
	delete(s.uploads, id)
	s.writeJSON(w, map[string]interface{}{
		"result":   0,
		"metadata": []map[string]interface{}{{"name": name, "isfolder": false, "size": int64(len(u.data))}},
	})
}
