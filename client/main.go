package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// send formats and sends an event frame to the server.
func send(c *websocket.Conn, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(map[string]json.RawMessage{
		"event": json.RawMessage(strconv.Quote(event)),
		"data":  payload,
	})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			log.Printf("<< %s", message)
		}
	}()

	// Heartbeat loop
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := send(c, "heartbeat", nil); err != nil {
				return
			}
		}
	}()

	fmt.Println("Commands:")
	fmt.Println("  create <capacity> <name> <color>")
	fmt.Println("  join <code> <name> <color>")
	fmt.Println("  rejoin <code>")
	fmt.Println("  move <code> <pos>")
	fmt.Println("  remove <code>")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "create":
			if len(fields) != 4 {
				fmt.Println("usage: create <capacity> <name> <color>")
				continue
			}
			capacity, _ := strconv.Atoi(fields[1])
			err = send(c, "create", map[string]interface{}{
				"capacity": capacity,
				"player":   map[string]string{"name": fields[2], "color": fields[3]},
			})
		case "join":
			if len(fields) != 4 {
				fmt.Println("usage: join <code> <name> <color>")
				continue
			}
			code, _ := strconv.Atoi(fields[1])
			err = send(c, "join", map[string]interface{}{
				"code":   code,
				"player": map[string]string{"name": fields[2], "color": fields[3]},
			})
		case "rejoin":
			if len(fields) != 2 {
				fmt.Println("usage: rejoin <code>")
				continue
			}
			code, _ := strconv.Atoi(fields[1])
			err = send(c, "rejoin", map[string]interface{}{"code": code})
		case "move":
			if len(fields) != 3 {
				fmt.Println("usage: move <code> <pos>")
				continue
			}
			code, _ := strconv.Atoi(fields[1])
			pos, _ := strconv.Atoi(fields[2])
			err = send(c, "move", map[string]interface{}{"code": code, "pos": pos})
		case "remove":
			if len(fields) != 2 {
				fmt.Println("usage: remove <code>")
				continue
			}
			code, _ := strconv.Atoi(fields[1])
			err = send(c, "remove", map[string]interface{}{"code": code})
		default:
			fmt.Printf("unknown command %q\n", fields[0])
			continue
		}

		if err != nil {
			log.Printf("Send error: %v", err)
		}

		select {
		case <-interrupt:
			return
		case <-done:
			return
		default:
		}
	}
}
