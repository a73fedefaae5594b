package kit

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPDecode turns an incoming request into the endpoint's request.
type HTTPDecode func(*http.Request) (any, error)

// HTTPHandler serves endpoint over HTTP. decode errors answer 400; endpoint
// errors answer status(err), or 500 when status is nil. Responses and errors
// are JSON.
func HTTPHandler(endpoint Endpoint, decode HTTPDecode, status func(error) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			code := http.StatusBadRequest
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				code = http.StatusRequestEntityTooLarge
			}
			WriteError(w, code, err)
			return
		}

		ctx := WithTransport(r.Context(), TransportHTTP)
		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			if status != nil {
				code = status(err)
			}
			WriteError(w, code, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	})
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": err} with code.
func WriteError(w http.ResponseWriter, code int, err error) {
	WriteJSON(w, code, map[string]string{"error": err.Error()})
}
