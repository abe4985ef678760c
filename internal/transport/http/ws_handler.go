package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// WSHandler drives the quiz play loop over a websocket: question out,
// answer in, timer events pushed as they happen.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionID string `json:"optionId"`
	Text     string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type priorResultPayload struct {
	Message string             `json:"message"`
	Prior   *domain.QuizResult `json:"prior,omitempty"`
}

// questionView is the sanitized question pushed to players. The correct
// answer ID never crosses the wire, and for text questions the canonical
// answer catalog stays server-side too.
type questionView struct {
	Index             int                 `json:"index"`
	TotalQuestions    int                 `json:"totalQuestions"`
	ID                string              `json:"id"`
	Text              string              `json:"text"`
	QuestionType      domain.QuestionType `json:"questionType"`
	Answers           []domain.Answer     `json:"answers,omitempty"`
	Image             string              `json:"image,omitempty"`
	Context           string              `json:"context,omitempty"`
	QuestionRemaining int                 `json:"questionRemaining"`
	QuizRemaining     int                 `json:"quizRemaining"`
}

type tickPayload struct {
	Index             int `json:"index"`
	QuestionRemaining int `json:"questionRemaining"`
	QuizRemaining     int `json:"quizRemaining"`
}

// ServeWS upgrades the connection and runs one quiz session for the user.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	outcome, err := h.service.Start(r.Context(), userID, displayName)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveQuiz) || errors.Is(err, domain.ErrNoQuestions) {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "noActiveQuiz", Payload: errorPayload{Message: err.Error()}})
		} else {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
		return
	}
	if outcome.AlreadyCompleted {
		_ = conn.WriteJSON(outboundMessage[priorResultPayload]{Type: "alreadyCompleted", Payload: priorResultPayload{
			Message: "you have already completed this quiz",
			Prior:   outcome.Prior,
		}})
		return
	}

	session := outcome.Session
	updates, cancelUpdates := session.Subscribe()
	defer cancelUpdates()
	defer h.service.Abandon(r.Context(), userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- translateEvent(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// enqueue parks on the writer's exit as well as the send buffer, so a dead
	// connection with a full buffer cannot wedge the read loop.
	enqueue := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}
	sendError := func(message string) bool {
		return enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !sendError("invalid answer payload") {
					break readLoop
				}
				continue
			}
			var sub domain.Submission
			if payload.OptionID != "" {
				sub = domain.OptionChoice{OptionID: payload.OptionID}
			} else {
				sub = domain.FreeText{Raw: payload.Text}
			}
			fb, err := h.service.Submit(r.Context(), userID, sub)
			if err != nil {
				if !sendError(err.Error()) {
					break readLoop
				}
				continue
			}
			if !enqueue(outboundMessage[any]{Type: "feedback", Payload: fb}) {
				break readLoop
			}
		case "review":
			entries, err := h.service.Review(r.Context(), userID)
			if err != nil {
				if !sendError(err.Error()) {
					break readLoop
				}
				continue
			}
			if !enqueue(outboundMessage[any]{Type: "review", Payload: entries}) {
				break readLoop
			}
		case "retrySave":
			summary, err := h.service.RetrySave(r.Context(), userID)
			if err != nil {
				if !sendError(err.Error()) {
					break readLoop
				}
				continue
			}
			if !enqueue(outboundMessage[any]{Type: "saved", Payload: summary}) {
				break readLoop
			}
		case "abandon":
			break readLoop
		default:
			if !sendError("unsupported message type") {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func translateEvent(ev app.Event) outboundMessage[any] {
	switch ev.Type {
	case app.EventQuestion:
		view := questionView{
			Index:             ev.Index,
			TotalQuestions:    ev.TotalQuestions,
			ID:                ev.Question.ID,
			Text:              ev.Question.Text,
			QuestionType:      ev.Question.QuestionType,
			Image:             ev.Question.Image,
			Context:           ev.Question.Context,
			QuestionRemaining: ev.QuestionRemaining,
			QuizRemaining:     ev.QuizRemaining,
		}
		if ev.Question.QuestionType == domain.QuestionTypeMultipleChoice {
			view.Answers = ev.Question.Answers
		}
		return outboundMessage[any]{Type: "question", Payload: view}
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{
			Index:             ev.Index,
			QuestionRemaining: ev.QuestionRemaining,
			QuizRemaining:     ev.QuizRemaining,
		}}
	case app.EventTimeUp:
		return outboundMessage[any]{Type: "timeUp", Payload: tickPayload{
			Index:         ev.Index,
			QuizRemaining: ev.QuizRemaining,
		}}
	case app.EventCompleted:
		return outboundMessage[any]{Type: "completed", Payload: ev.Summary}
	}
	return outboundMessage[any]{Type: string(ev.Type)}
}
