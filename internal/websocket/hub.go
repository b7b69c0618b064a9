package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"training-service/internal/service"
)

type ClientMessage struct {
	Client  *Client
	Message Message
	Raw     []byte
}

// Hub owns the set of connected clients and routes their messages to the
// training service. One client maps to exactly one live session.
type Hub struct {
	clients       map[*Client]bool
	Register      chan *Client
	Unregister    chan *Client
	HandleMessage chan *ClientMessage

	trainingService *service.TrainingService

	mu sync.RWMutex
}

func NewHub(trainingService *service.TrainingService) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		HandleMessage:   make(chan *ClientMessage),
		trainingService: trainingService,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case clientMsg := <-h.HandleMessage:
			h.handleClientMessage(clientMsg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	log.Printf("Client registered: user=%s, session=%s", client.UserID, client.SessionID)

	client.SendMessage(MessageTypeConnected, ConnectedPayload{
		SessionID: client.SessionID,
		UserID:    client.UserID,
	})

	h.trainingService.Connect(client.SessionID, client.UserID, client.SendEvent)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.mu.Unlock()

	// The emit reference handed to the training service may outlive the
	// client, so sends are disabled instead of closing the channel.
	client.shutdown()

	h.trainingService.Disconnect(client.SessionID)
	log.Printf("Client unregistered: user=%s, session=%s", client.UserID, client.SessionID)
}

func (h *Hub) handleClientMessage(clientMsg *ClientMessage) {
	client := clientMsg.Client
	msg := clientMsg.Message
	ctx := context.Background()

	log.Printf("Received message: type=%s, user=%s, session=%s", msg.Type, client.UserID, client.SessionID)

	switch msg.Type {
	case MessageTypeSelectMode:
		var payload SelectModePayload
		if !decodePayload(client, clientMsg.Raw, &payload) {
			return
		}
		go h.trainingService.SelectMode(ctx, client.SessionID, payload.Mode)

	case MessageTypeSelectScenario:
		var payload SelectScenarioPayload
		if !decodePayload(client, clientMsg.Raw, &payload) {
			return
		}
		go h.trainingService.SelectScenario(ctx, client.SessionID, payload.ScenarioID)

	case MessageTypePlaybackFinished:
		h.trainingService.PlaybackFinished(client.SessionID)

	case MessageTypeStartRecording:
		h.trainingService.StartRecording(client.SessionID)

	case MessageTypeAgentAudio:
		var payload AgentAudioPayload
		if !decodePayload(client, clientMsg.Raw, &payload) {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			client.SendError("Invalid audio encoding")
			return
		}
		go h.trainingService.AgentAudio(ctx, client.SessionID, audio, payload.Filename)

	case MessageTypeEndConversation:
		go h.trainingService.EndConversation(ctx, client.SessionID)

	case MessageTypeStartQuiz:
		var payload StartQuizPayload
		if !decodePayload(client, clientMsg.Raw, &payload) {
			return
		}
		go h.trainingService.StartQuiz(ctx, client.SessionID, payload.SetID)

	case MessageTypeAnswer:
		var payload AnswerPayload
		if !decodePayload(client, clientMsg.Raw, &payload) {
			return
		}
		h.trainingService.Answer(client.SessionID, payload.QuestionID, payload.Value)

	case MessageTypeSubmitQuiz:
		go h.trainingService.SubmitQuiz(ctx, client.SessionID)

	case MessageTypeBack:
		h.trainingService.Back(client.SessionID)

	case MessageTypeGoHome:
		h.trainingService.GoHome(client.SessionID)

	case MessageTypeOpenProfile:
		go h.trainingService.OpenProfile(ctx, client.SessionID)

	case MessageTypeOpenLeaderboard:
		go h.trainingService.OpenLeaderboard(ctx, client.SessionID)

	case MessageTypePing:
		client.SendMessage(MessageTypePong, nil)

	default:
		client.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func decodePayload(client *Client, raw []byte, out any) bool {
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Payload) == 0 {
		client.SendError("Missing message payload")
		return false
	}
	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		client.SendError("Invalid message payload")
		return false
	}
	return true
}
