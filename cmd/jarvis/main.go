// Command jarvis is a terminal chat client that talks to OpenAI, Claude and
// Gemini from one conversation.
//
//	jarvis setup              configure API keys and defaults
//	jarvis [chat] [-p claude] start an interactive chat
//	jarvis ask "question"     one-shot prompt, reply on stdout
//
// Inside a chat, prefix a line with o:, c: or g: to route that single turn
// to OpenAI, Claude or Gemini.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
