package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"txn-insights/pkg/engine"
	"txn-insights/pkg/logging"
	"txn-insights/pkg/transaction"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// number writes d as a bare JSON number.
func number(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.String())
}

// respond encodes the result of query and writes it. When a chain is
// configured the encoded body is cached under a key scoped to the snapshot,
// so a different snapshot never sees stale answers. Query errors are never
// cached.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, args []string, query func() (any, error)) {
	load := func(context.Context) ([]byte, error) {
		v, err := query()
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	var (
		body []byte
		err  error
	)

	key, cacheable := s.cacheKey(op, args)
	if cacheable {
		var hit bool
		body, hit, err = s.chain.GetOrLoad(r.Context(), key, load)
		if hit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
	} else {
		body, err = load(r.Context())
	}

	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeBody(w, http.StatusOK, body)
}

func (s *Server) cacheKey(op string, args []string) (string, bool) {
	if s.chain == nil {
		return "", false
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		return "", false
	}

	key, err := s.keys.Query(snap.ID(), op, args...)
	if err != nil {
		// Oversized arguments are answered uncached
		s.logger.Debug("response not cacheable", logging.Operation(op), zap.Error(err))
		return "", false
	}
	return key, true
}

// writeError maps a failed query to a 500 with its classification.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := engine.ClassifyError(err)
	logging.FromContext(r.Context()).Warn("query failed",
		logging.Operation(op),
		zap.String("kind", kind),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: kind})
}

// pathParam returns the decoded path variable name.
func pathParam(r *http.Request, name string) (string, error) {
	return url.PathUnescape(mux.Vars(r)[name])
}

func (s *Server) handleTotalAmount(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpTotalAmount, nil, func() (any, error) {
		total, err := s.engine.TotalAmount()
		return number(total), err
	})
}

func (s *Server) handleTotalAmountSentBy(w http.ResponseWriter, r *http.Request) {
	sender, err := pathParam(r, "senderFullName")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}

	logging.FromContext(r.Context()).Debug("client query",
		logging.Operation(engine.OpTotalAmountSentBy),
		logging.Client(sender),
	)
	s.respond(w, r, engine.OpTotalAmountSentBy, []string{sender}, func() (any, error) {
		total, err := s.engine.TotalAmountSentBy(sender)
		return number(total), err
	})
}

func (s *Server) handleMaxAmount(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpMaxAmount, nil, func() (any, error) {
		highest, err := s.engine.MaxAmount()
		return number(highest), err
	})
}

func (s *Server) handleCountUniqueClients(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpCountUniqueClients, nil, func() (any, error) {
		return s.engine.CountUniqueClients()
	})
}

func (s *Server) handleHasOpenComplianceIssue(w http.ResponseWriter, r *http.Request) {
	client, err := pathParam(r, "clientFullName")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}

	logging.FromContext(r.Context()).Debug("client query",
		logging.Operation(engine.OpHasOpenComplianceIssue),
		logging.Client(client),
	)
	s.respond(w, r, engine.OpHasOpenComplianceIssue, []string{client}, func() (any, error) {
		return s.engine.HasOpenComplianceIssue(client)
	})
}

func (s *Server) handleTransactionsByBeneficiary(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpTransactionsByBeneficiary, nil, func() (any, error) {
		return s.engine.TransactionsByBeneficiary()
	})
}

func (s *Server) handleUnsolvedIssueIDs(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpUnsolvedIssueIDs, nil, func() (any, error) {
		return s.engine.UnsolvedIssueIDs()
	})
}

func (s *Server) handleSolvedIssueMessages(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpSolvedIssueMessages, nil, func() (any, error) {
		return s.engine.SolvedIssueMessages()
	})
}

func (s *Server) handleTop3ByAmount(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpTopByAmount, []string{"3"}, func() (any, error) {
		return s.engine.Top3ByAmount()
	})
}

func (s *Server) handleTopSender(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, engine.OpTopSender, nil, func() (any, error) {
		name, ok, err := s.engine.TopSender()
		if err != nil || !ok {
			return nil, err
		}
		return name, nil
	})
}

type summaryResponse struct {
	SnapshotID          string                    `json:"snapshotId"`
	Records             int                       `json:"records"`
	TotalAmount         json.RawMessage           `json:"totalTransactionAmount"`
	MaxAmount           json.RawMessage           `json:"maxTransactionAmount"`
	UniqueClients       int                       `json:"uniqueClients"`
	Beneficiaries       int                       `json:"beneficiaries"`
	UnsolvedIssueIDs    []int64                   `json:"unsolvedIssueIds"`
	SolvedIssueMessages int                       `json:"solvedIssueMessages"`
	Top3                []transaction.Transaction `json:"top3TransactionsByAmount"`
	TopSender           *string                   `json:"topSender"`
	Errors              map[string]string         `json:"errors,omitempty"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "summary", nil, func() (any, error) {
		sum, err := s.engine.Summary()
		if err != nil {
			return nil, err
		}

		resp := summaryResponse{
			SnapshotID:          sum.SnapshotID,
			Records:             sum.Records,
			TotalAmount:         number(sum.TotalAmount),
			MaxAmount:           json.RawMessage("null"),
			UniqueClients:       sum.UniqueClients,
			Beneficiaries:       sum.Beneficiaries,
			UnsolvedIssueIDs:    sum.UnsolvedIssueIDs,
			SolvedIssueMessages: sum.SolvedIssueMessages,
			Top3:                sum.Top3,
			TopSender:           sum.TopSender,
			Errors:              sum.Errors,
		}
		if sum.MaxAmount != nil {
			resp.MaxAmount = number(*sum.MaxAmount)
		}
		return resp, nil
	})
}
