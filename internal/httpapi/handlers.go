package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/archive"
	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
	"github.com/DoyleJ11/map-pickban-backend/internal/hub"
	"github.com/DoyleJ11/map-pickban-backend/internal/types"
	wire "github.com/DoyleJ11/map-pickban-backend/pkg/types"
)

const codeAttempts = 5

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRequest struct {
	Format string `json:"format"`
	Code   string `json:"code,omitempty"`
}

type createResponse struct {
	Code       string `json:"code"`
	AdminToken string `json:"adminToken"`
}

// CreateLobby registers a session. Without an explicit code a random one is
// generated, retrying on collision.
func CreateLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeError(w, errs.Wrap(errs.CodeBadRequest, "invalid request body", err))
			return
		}

		explicit := req.Code != ""
		for attempt := 0; ; attempt++ {
			code := req.Code
			if !explicit {
				c, err := GenerateCode()
				if err != nil {
					writeError(w, errs.Wrap(errs.CodeInternal, "failed to generate code", err))
					return
				}
				code = c
			}

			_, adminToken, err := h.Create(r.Context(), code, engine.Format(req.Format))
			if errors.Is(err, errs.ErrDuplicateCode) && !explicit && attempt < codeAttempts {
				log.Debug("collision on code, regenerating", zap.String("code", code))
				continue
			}
			if err != nil {
				writeError(w, err)
				return
			}

			writeJSON(w, http.StatusCreated, createResponse{Code: code, AdminToken: adminToken})
			return
		}
	}
}

func ListLobbies(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := h.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Sessions []string `json:"sessions"`
		}{Sessions: codes})
	}
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Get(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, err)
			return
		}
		view, err := lb.View(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.NewRoomView(view.Version, view.State))
	}
}

func ListResults(store archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if !engine.ValidCode(code) {
			writeError(w, errs.ErrInvalidCode)
			return
		}
		results, err := store.ListByCode(r.Context(), code)
		if err != nil {
			writeError(w, errs.Wrap(errs.CodeInternal, "could not load results", err))
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Results []archive.Result `json:"results"`
		}{Results: results})
	}
}

func ListFormats(w http.ResponseWriter, r *http.Request) {
	formats := engine.Formats()
	out := make([]wire.FormatView, 0, len(formats))
	for _, f := range formats {
		seq, _ := engine.SequenceFor(f)
		out = append(out, wire.FormatView{Name: string(f), Sequence: types.StepViews(seq)})
	}
	writeJSON(w, http.StatusOK, struct {
		Formats []wire.FormatView `json:"formats"`
		MapPool []string          `json:"mapPool"`
	}{Formats: out, MapPool: engine.MapPool()})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), types.ErrorPayload{
		Code:    string(code),
		Message: errs.MessageOf(err),
	})
}
