// Command chatclient sends one chat turn over the websocket and saves the returned audio.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/studybuddy/domain/entities"
)

type chatResponse struct {
	Type           string                  `json:"type"`
	Messages       []entities.ReplySegment `json:"messages"`
	MermaidDiagram *string                 `json:"mermaidDiagram"`
	Error          string                  `json:"error"`
	Text           string                  `json:"text"`
	Code           string                  `json:"error_code"`
}

func main() {
	host := flag.String("host", "localhost:3000", "server host:port")
	message := flag.String("message", "Explain recursion", "message to send")
	diagram := flag.Bool("diagram", false, "request a diagram")
	outDir := flag.String("out", "chat_responses", "directory for received audio")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessages(c, *outDir, done)

	err = c.WriteJSON(map[string]interface{}{
		"type":           "chat",
		"message_id":     fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		"message":        *message,
		"requestDiagram": *diagram,
	})
	if err != nil {
		log.Fatal("write:", err)
	}
	log.Printf("sent %q, waiting for the avatar...", *message)

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
	}

	// Cleanly close the connection by sending a close message
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
	}
}

// handleIncomingMessages reads frames until a chat response or error arrives
func handleIncomingMessages(c *websocket.Conn, outDir string, done chan struct{}) {
	defer close(done)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		var msg chatResponse
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("unmarshal error:", err)
			continue
		}

		switch msg.Type {
		case "transcription":
			log.Printf("heard: %s", msg.Text)
		case "error":
			log.Printf("server error %s: %s", msg.Code, string(message))
			return
		case "chat_response":
			if msg.Error != "" {
				log.Printf("server reported: %s", msg.Error)
			}
			saveResponse(msg, outDir)
			return
		default:
			log.Printf("Received unknown message type: %s", msg.Type)
		}
	}
}

func saveResponse(msg chatResponse, outDir string) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Printf("Error creating output directory: %v", err)
		return
	}

	stamp := time.Now().Unix()
	for i, segment := range msg.Messages {
		cues := 0
		if segment.Lipsync != nil {
			cues = len(segment.Lipsync.MouthCues)
		}
		log.Printf("[%d] %s (%s/%s, %d cues)", i, segment.Text, segment.FacialExpression, segment.Animation, cues)

		if segment.Audio == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(segment.Audio)
		if err != nil {
			log.Printf("Error decoding audio for segment %d: %v", i, err)
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%d_%d.mp3", stamp, i))
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			log.Printf("Error writing audio: %v", err)
			continue
		}
		log.Printf("saved %s (%d bytes)", path, len(audio))
	}

	if msg.MermaidDiagram != nil {
		log.Printf("diagram:\n%s", *msg.MermaidDiagram)
	}
}
