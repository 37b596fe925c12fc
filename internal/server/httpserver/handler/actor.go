package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// handleCall handles GET|POST /{package}/{actor}/{method}.
//
// Query parameters and the keys of a JSON object body become keyword
// arguments. Body keys win over query parameters of the same name.
func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	pkg := r.PathValue("package")
	exec, ok := h.packages[pkg]
	if !ok {
		h.writeFailure(w, r, domain.NotFoundf("package %s not found", pkg))
		return
	}

	kwargs, err := h.kwargs(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	res := exec.Execute(r.Context(), r.PathValue("actor"), r.PathValue("method"), kwargs)
	h.writeResult(w, r, res)
}

func (h *Handler) kwargs(r *http.Request) (map[string]any, error) {
	kwargs := make(map[string]any)
	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		kwargs[name] = parseParam(values[len(values)-1])
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return kwargs, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return nil, domain.BadRequestf("read request body: %v", err)
	}
	if int64(len(body)) > h.maxBody {
		return nil, domain.BadRequestf("request body exceeds %d bytes", h.maxBody)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return kwargs, nil
	}

	v, err := domain.DecodeJSON(body)
	if err != nil {
		return nil, domain.BadRequestf("request body is not valid JSON").WithCause(err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.BadRequestf("request body must be a JSON object")
	}
	for k, val := range obj {
		kwargs[k] = val
	}
	return kwargs, nil
}

// parseParam reads a query value as a JSON literal, falling back to the
// raw string.
func parseParam(s string) any {
	if s == "" {
		return s
	}
	v, err := domain.DecodeJSON([]byte(s))
	if err != nil {
		return s
	}
	return v
}
