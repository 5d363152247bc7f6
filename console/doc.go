// Package console renders a chat session in the terminal and implements
// session.Presenter. Input uses liner for line editing and history; output
// is styled with lipgloss and replies are echoed character by character at
// a rate-limited pace.
package console
