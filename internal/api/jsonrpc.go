package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/app"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/storage/ipfscontent"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/wallet"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/workflow"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 8 << 20

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32600, Message: "invalid request"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32600, Message: "invalid request"}})
		return
	}

	started := time.Now()
	result, rpcErr := s.dispatch(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.log.Warn("rpc failed",
			"method", req.Method, "code", rpcErr.Code,
			"latency_ms", time.Since(started).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	} else {
		s.log.Info("rpc ok",
			"method", req.Method,
			"latency_ms", time.Since(started).Milliseconds())
	}
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeParams[T any](raw json.RawMessage, into *T) *rpcError {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &rpcError{Code: -32602, Message: "invalid params"}
	}
	return nil
}

type connectParams struct {
	Prompt *bool `json:"prompt"`
}

type submitParams struct {
	Species     string `json:"species"`
	TreeCount   uint64 `json:"tree_count"`
	Description string `json:"description"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	FileName    string `json:"file_name"`
	FileBase64  string `json:"file_base64"`
}

type idParams struct {
	ID uint64 `json:"id"`
}

type projectParams struct {
	ProjectID uint64 `json:"project_id"`
}

type addressParams struct {
	Address string `json:"address"`
}

type whitelistParams struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type ngoStatusParams struct {
	Address string `json:"address"`
	Status  uint8  `json:"status"`
}

type verifyParams struct {
	ID       uint64 `json:"id"`
	Approved bool   `json:"approved"`
}

type eventsParams struct {
	FromSeq int64 `json:"from_seq"`
}

func (s *Server) dispatch(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "wallet_connect":
		var p connectParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		prompt := true
		if p.Prompt != nil {
			prompt = *p.Prompt
		}
		info, err := s.svc.Connect(ctx, prompt)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return info, nil

	case "wallet_disconnect":
		s.svc.Disconnect()
		return map[string]bool{"disconnected": true}, nil

	case "session_info":
		return s.svc.Session(), nil

	case "project_submit":
		var p submitParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		data, err := base64.StdEncoding.DecodeString(p.FileBase64)
		if err != nil {
			return nil, &rpcError{Code: -32602, Message: "invalid params: file_base64"}
		}
		receipt, err := s.svc.SubmitProject(ctx, workflow.Submission{
			Species:     p.Species,
			TreeCount:   p.TreeCount,
			Description: p.Description,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			FileName:    p.FileName,
			FileData:    data,
		})
		if err != nil {
			return nil, mapServiceError(err)
		}
		return receipt, nil

	case "project_list":
		out, err := s.svc.Plantations(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "project_get":
		var p idParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		out, err := s.svc.Plantation(ctx, p.ID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "project_mine":
		out, err := s.svc.MyPlantations(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "ngo_list":
		out, err := s.svc.NGOs(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "ngo_get":
		var p addressParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		out, err := s.svc.NGO(ctx, p.Address)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "ngo_whitelist":
		var p whitelistParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.svc.WhitelistNGO(ctx, p.Address, p.Name, p.Country); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil

	case "ngo_set_status":
		var p ngoStatusParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.svc.SetNGOStatus(ctx, p.Address, models.NGOStatus(p.Status)); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil

	case "verify_admin":
		var p verifyParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.svc.VerifyPlantation(ctx, p.ID, p.Approved); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil

	case "owner_set_admin":
		var p addressParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.svc.TransferAdmin(ctx, p.Address); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil

	case "reputation_get":
		var p addressParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		out, err := s.svc.Reputation(ctx, p.Address)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "oracle_request_score":
		var p projectParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.svc.RequestScore(ctx, p.ProjectID); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil

	case "oracle_score":
		var p projectParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		out, err := s.svc.Score(ctx, p.ProjectID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return out, nil

	case "oracle_scores":
		return s.svc.Scores(), nil

	case "events_poll":
		var p eventsParams
		if rpcErr := decodeParams(raw, &p); rpcErr != nil {
			return nil, rpcErr
		}
		return s.svc.Events(p.FromSeq), nil

	case "daemon_metrics":
		return s.svc.Metrics(), nil
	}
	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

// mapServiceError translates domain errors into stable RPC codes a caller
// can branch on; chain write failures carry the decoded revert reason.
func mapServiceError(err error) *rpcError {
	var (
		writeErr  *chain.WriteError
		stepErr   *workflow.StepError
		uploadErr *ipfscontent.UploadError
		valErr    *workflow.ValidationError
	)
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		return &rpcError{Code: -32040, Message: err.Error()}
	case errors.Is(err, wallet.ErrUserRejected):
		return &rpcError{Code: -32041, Message: err.Error()}
	case errors.Is(err, app.ErrNotConnected):
		return &rpcError{Code: -32042, Message: err.Error()}
	case errors.Is(err, app.ErrUnauthorized):
		return &rpcError{Code: -32043, Message: err.Error()}
	case errors.Is(err, app.ErrNotOwner):
		return &rpcError{Code: -32044, Message: err.Error()}
	case errors.Is(err, app.ErrInvalidAddress), errors.As(err, &valErr):
		return &rpcError{Code: -32602, Message: err.Error()}
	case errors.Is(err, workflow.ErrRunInProgress):
		return &rpcError{Code: -32045, Message: err.Error()}
	case errors.As(err, &stepErr):
		inner := mapServiceError(stepErr.Err)
		return &rpcError{Code: -32046, Message: err.Error(), Data: map[string]any{
			"step":  stepErr.Step,
			"total": stepErr.Total,
			"label": stepErr.Label,
			"cause": inner.Message,
		}}
	case errors.As(err, &uploadErr):
		return &rpcError{Code: -32047, Message: err.Error()}
	case errors.As(err, &writeErr):
		data := map[string]any{}
		if writeErr.Reason != "" {
			data["revert_reason"] = writeErr.Reason
		}
		return &rpcError{Code: -32050, Message: err.Error(), Data: data}
	case errors.Is(err, chain.ErrSessionInvalidated):
		return &rpcError{Code: -32048, Message: err.Error()}
	default:
		return &rpcError{Code: -32000, Message: err.Error()}
	}
}
