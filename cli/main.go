// Package main provides an interactive chat client for the docs agent
// websocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/xiaot623/docsagent/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn           *websocket.Conn
	conversationID string
	seq            int
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, conversationID string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn, conversationID: conversationID}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Chat sends one message and waits for its answer. The conversation id
// returned by the server is kept for the next turn.
func (c *Client) Chat(message, feedback string) (*ws.AnswerMessage, error) {
	c.seq++
	requestID := fmt.Sprintf("req_%d", c.seq)
	msg := ws.ChatMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeChat,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
		ConversationID: c.conversationID,
		Message:        message,
		Feedback:       feedback,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("write chat: %w", err)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if base.RequestID != "" && base.RequestID != requestID {
			continue
		}

		switch base.Type {
		case ws.TypeAnswer:
			var answer ws.AnswerMessage
			if err := json.Unmarshal(data, &answer); err != nil {
				return nil, fmt.Errorf("unmarshal answer: %w", err)
			}
			if answer.ConversationID != "" {
				c.conversationID = answer.ConversationID
			}
			return &answer, nil
		case ws.TypeError:
			var errMsg ws.ErrorMessage
			json.Unmarshal(data, &errMsg)
			return nil, fmt.Errorf("%s: %s", errMsg.Code, errMsg.Message)
		default:
			return nil, errors.New("unexpected message type: " + base.Type)
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket server address")
	conversation := flag.String("conversation", "", "Conversation ID to resume")
	flag.Parse()

	log.SetFlags(log.Ltime)

	client, err := NewClient(*addr, *conversation)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	// Piped input gets answers only, no prompts.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("Connected. Type a message and press Enter to send.")
		fmt.Println("Commands: /new starts a new conversation, /feedback <text> attaches feedback to the next message, /quit exits")
	}

	scanner := bufio.NewScanner(os.Stdin)
	var feedback string
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/quit":
			fmt.Println("Bye!")
			return
		case input == "/new":
			client.conversationID = ""
			fmt.Println("Started a new conversation.")
			continue
		case strings.HasPrefix(input, "/feedback "):
			feedback = strings.TrimSpace(strings.TrimPrefix(input, "/feedback "))
			fmt.Println("Feedback will be sent with the next message.")
			continue
		}

		answer, err := client.Chat(input, feedback)
		feedback = ""
		if err != nil {
			log.Printf("Error: %v", err)
			continue
		}
		if answer.HasError {
			fmt.Printf("[%s] error: %s\n", answer.ConversationID, answer.ErrorMessage)
			continue
		}
		fmt.Printf("[%s] %s\n", answer.ActiveAgent, answer.Answer)
		if !answer.StateSaved {
			fmt.Println("(warning: conversation state was not saved)")
		}
	}
}
