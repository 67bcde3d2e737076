package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nhle/nyord-notifier/internal/model"
)

// NewNotification is the input to Push.
type NewNotification struct {
	UserID       int64                  `json:"user_id"`
	Type         model.NotificationType `json:"type"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	RelatedID    *int64                 `json:"related_id,omitempty"`
	FromUserID   *int64                 `json:"from_user_id,omitempty"`
	FromUserName *string                `json:"from_user_name,omitempty"`
	// Silent stores the notification without pushing a frame.
	Silent bool `json:"silent,omitempty"`
}

// Transaction is the input to PushTransaction.
type Transaction struct {
	UserID         int64           `json:"user_id"`
	TransactionID  int64           `json:"transaction_id"`
	Src            int64           `json:"src"`
	Dest           int64           `json:"dest"`
	Amount         decimal.Decimal `json:"amount"`
	NewSrcBalance  decimal.Decimal `json:"new_src_balance"`
	NewDestBalance decimal.Decimal `json:"new_dest_balance"`
}

type notificationFrame struct {
	Type string `json:"type"`
	Data record `json:"data"`
}

type transactionFrame struct {
	Type           string          `json:"type"`
	TransactionID  int64           `json:"transaction_id"`
	Src            int64           `json:"src"`
	Dest           int64           `json:"dest"`
	Amount         decimal.Decimal `json:"amount"`
	NewSrcBalance  decimal.Decimal `json:"new_src_balance"`
	NewDestBalance decimal.Decimal `json:"new_dest_balance"`
}

// Push stores a notification for n.UserID and pushes it to the user's
// open sockets. It returns the new notification's id.
func (s *Server) Push(n NewNotification) (int64, error) {
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}

	s.mu.Lock()
	if s.userByID(n.UserID) == nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("unknown user %d", n.UserID)
	}
	now := s.now().UTC()
	s.nextNotifID++
	rec := &record{
		ID:           s.nextNotifID,
		UserID:       n.UserID,
		Type:         string(n.Type),
		Category:     string(model.CategoryFor(n.Type)),
		Title:        n.Title,
		Message:      n.Message,
		RelatedID:    n.RelatedID,
		CreatedAt:    now.Format(naiveLayout),
		FromUserID:   n.FromUserID,
		FromUserName: n.FromUserName,
		created:      now,
	}
	s.notifications[n.UserID] = append(s.notifications[n.UserID], rec)
	out := *rec
	s.mu.Unlock()

	if !n.Silent {
		s.sendToUser(n.UserID, notificationFrame{Type: "notification", Data: out})
	}
	return out.ID, nil
}

// PushTransaction sends a transaction.success frame. Nothing is stored.
func (s *Server) PushTransaction(tx Transaction) int {
	return s.sendToUser(tx.UserID, transactionFrame{
		Type:           "transaction.success",
		TransactionID:  tx.TransactionID,
		Src:            tx.Src,
		Dest:           tx.Dest,
		Amount:         tx.Amount,
		NewSrcBalance:  tx.NewSrcBalance,
		NewDestBalance: tx.NewDestBalance,
	})
}

func (s *Server) handleDevNotify(w http.ResponseWriter, r *http.Request) {
	var req NewNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	id, err := s.Push(req)
	if err != nil {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Info("pushed notification", zap.Int64("id", id), zap.Int64("user_id", req.UserID))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDevTransaction(w http.ResponseWriter, r *http.Request) {
	var req Transaction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	sent := s.PushTransaction(req)
	writeJSON(w, http.StatusOK, map[string]int{"delivered": sent})
}

type dropRequest struct {
	UserID int64 `json:"user_id"`
	Code   int   `json:"code"`
}

func (s *Server) handleDevDrop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.Code == 0 {
		req.Code = 1006
	}
	dropped := s.Drop(req.UserID, req.Code)
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}
