package server

import (
	"strconv"
	"strings"

	"github.com/yourusername/relay/pkg/relay/cgi"
	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/metrics"
	"github.com/yourusername/relay/pkg/relay/session"
	"github.com/yourusername/relay/pkg/relay/static"
	"github.com/yourusername/relay/pkg/relay/upload"
)

// Handler is the single contract every backend shares: given a request
// and the matched route, produce a response or a typed error the router
// maps to a status.
type Handler interface {
	ServeHTTP(req *http11.Request, route *Route) (*http11.Response, error)
}

// StaticFileHandler serves files from the route's static root.
type StaticFileHandler struct {
	Files *static.ServerStaticFiles
}

func (h *StaticFileHandler) ServeHTTP(req *http11.Request, _ *Route) (*http11.Response, error) {
	res, err := h.Files.Serve(req.URI)
	if err != nil {
		return nil, err
	}
	contentType := res.MIME
	if contentType == "text/html" {
		contentType = "text/html; charset=UTF-8"
	}
	return http11.NewResponse(res.Status, http11.Headers{
		http11.NewHeader("Content-Type", contentType),
		http11.NewHeader("Content-Length", strconv.Itoa(len(res.Content))),
	}, http11.BinaryBody(res.Content)), nil
}

// CGIHandler runs the route's configured script.
type CGIHandler struct {
	Executor *cgi.Executor
}

func (h *CGIHandler) ServeHTTP(req *http11.Request, _ *Route) (*http11.Response, error) {
	return h.Executor.Execute(req)
}

// FileAPIHandler serves the upload API:
//
//	GET    /api/files/list        JSON listing
//	POST   /api/files/upload      multipart upload
//	DELETE /api/files/delete/{id} remove record and file
type FileAPIHandler struct {
	Registry *upload.Registry
}

func (h *FileAPIHandler) ServeHTTP(req *http11.Request, _ *Route) (*http11.Response, error) {
	switch req.Method {
	case http11.MethodGET:
		return h.list(req)
	case http11.MethodPOST:
		return h.upload(req)
	case http11.MethodDELETE:
		return h.delete(req)
	}
	return nil, methodNotAllowed()
}

func (h *FileAPIHandler) list(req *http11.Request) (*http11.Response, error) {
	if req.URI != "/api/files/list" {
		return nil, notFound("route not found")
	}
	files, err := h.Registry.List()
	if err != nil {
		return nil, err
	}
	return http11.JSONResponse(http11.StatusOK, map[string]any{"files": files}), nil
}

func (h *FileAPIHandler) upload(req *http11.Request) (*http11.Response, error) {
	if req.URI != "/api/files/upload" {
		return nil, notFound("route not found")
	}
	if req.Body == nil || req.Body.Kind != http11.BodyMultipart || req.Body.Multipart == nil {
		return nil, badRequest("multipart body required")
	}

	// Validate every file before writing any, so a rejected part does
	// not leave a half-applied upload behind.
	for _, file := range req.Body.Multipart.Files {
		if err := h.Registry.Validate(file.ContentType, file.Data); err != nil {
			return nil, err
		}
	}

	uploaded := make([]upload.File, 0, len(req.Body.Multipart.Files))
	for _, file := range req.Body.Multipart.Files {
		record, err := h.Registry.Add(file.Filename, file.Data)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, record)
	}
	return http11.JSONResponse(http11.StatusOK, map[string]any{
		"message": "Files uploaded successfully",
		"files":   uploaded,
	}), nil
}

func (h *FileAPIHandler) delete(req *http11.Request) (*http11.Response, error) {
	idStr, ok := strings.CutPrefix(req.URI, "/api/files/delete/")
	if !ok {
		return nil, notFound("route not found")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return nil, badRequest("invalid file ID")
	}
	record, err := h.Registry.Delete(id)
	if err != nil {
		return nil, err
	}
	return http11.JSONResponse(http11.StatusOK, map[string]any{
		"message": "File deleted successfully",
		"id":      record.ID,
	}), nil
}

// SessionHandler serves the session API:
//
//	POST   /api/session/create
//	DELETE /api/session/delete
type SessionHandler struct {
	Manager *session.Manager
}

func (h *SessionHandler) ServeHTTP(req *http11.Request, _ *Route) (*http11.Response, error) {
	switch req.Method {
	case http11.MethodPOST:
		return h.create(req)
	case http11.MethodDELETE:
		return h.destroy(req)
	}
	return nil, methodNotAllowed()
}

func (h *SessionHandler) create(req *http11.Request) (*http11.Response, error) {
	if req.URI != "/api/session/create" {
		return nil, notFound("route not found")
	}
	sess, cookieHeader, err := h.Manager.Create()
	if err != nil {
		return nil, err
	}
	resp := http11.JSONResponse(http11.StatusOK, map[string]string{
		"message":    "Session created",
		"session_id": sess.ID,
	})
	resp.Headers = append(resp.Headers, cookieHeader)
	return resp, nil
}

func (h *SessionHandler) destroy(req *http11.Request) (*http11.Response, error) {
	if req.URI != "/api/session/delete" {
		return nil, notFound("route not found")
	}
	sess, err := h.Manager.Get(req.HeaderValue(http11.HeaderCookie))
	if err != nil && err != session.ErrSessionExpired {
		return nil, err
	}
	if sess == nil {
		return http11.JSONResponse(http11.StatusNotFound,
			map[string]string{"error": "Session not found"}), nil
	}
	cookieHeader, err := h.Manager.Destroy(sess.ID)
	if err != nil {
		return nil, err
	}
	resp := http11.JSONResponse(http11.StatusOK, map[string]string{
		"message":    "Session destroyed successfully",
		"session_id": sess.ID,
	})
	resp.Headers = append(resp.Headers, cookieHeader)
	return resp, nil
}

// MetricsHandler renders the prometheus text exposition.
type MetricsHandler struct {
	Metrics *metrics.Metrics
}

func (h *MetricsHandler) ServeHTTP(req *http11.Request, _ *Route) (*http11.Response, error) {
	if req.Method != http11.MethodGET {
		return nil, methodNotAllowed()
	}
	text, err := h.Metrics.Render()
	if err != nil {
		return nil, err
	}
	return http11.NewResponse(http11.StatusOK, http11.Headers{
		http11.NewHeader("Content-Type", "text/plain; version=0.0.4"),
		http11.NewHeader("Content-Length", strconv.Itoa(len(text))),
	}, http11.BinaryBody(text)), nil
}
