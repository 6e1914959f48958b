// Command ws-bridge exposes a stdio ACP agent over WebSocket. Each
// connection to /ws spawns its own agent subprocess; JSON-RPC messages are
// relayed verbatim in both directions, one WebSocket text message per
// newline-delimited JSON-RPC message.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/exec"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "Address to listen on")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: ws-bridge [-addr :8080] <agent-command> [agent-args...]")
	}

	http.HandleFunc("/ws", handleWS(flag.Args()))

	fmt.Printf("WebSocket bridge running on ws://localhost%s/ws\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleWS(cmdArgs []string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()

		// Each connection gets its own agent subprocess.
		cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			log.Println("Error getting stdin:", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			log.Println("Error getting stdout:", err)
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			log.Println("Error getting stderr:", err)
			return
		}

		if err := cmd.Start(); err != nil {
			log.Println("Error starting agent:", err)
			return
		}
		defer func() {
			stdin.Close()
			cmd.Wait()
		}()

		// Agent stdout carries newline-delimited JSON-RPC; forward each
		// message unchanged.
		go func() {
			scanner := bufio.NewScanner(stdout)
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			for scanner.Scan() {
				if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
					log.Println("WS write error:", err)
					return
				}
			}
		}()

		// Agent diagnostics go to the bridge's log, never to the socket.
		go func() {
			scanner := bufio.NewScanner(stderr)
			for scanner.Scan() {
				log.Println("agent:", scanner.Text())
			}
		}()

		// WebSocket messages → agent stdin, restoring the newline framing.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Println("WS read error:", err)
				return
			}
			if _, err := stdin.Write(append(msg, '\n')); err != nil {
				log.Println("Stdin write error:", err)
				return
			}
		}
	}
}
