// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"
)

// SentEmail records one call to a FakeNotifier.
type SentEmail struct {
	Kind     string // "verification" or "reset"
	Email    string
	FullName string
	Payload  string // code or reset URL
}

// FakeNotifier captures notifications instead of sending them.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func (f *FakeNotifier) SendVerificationEmail(_ context.Context, email, fullName, code string) error {
	return f.record(SentEmail{Kind: "verification", Email: email, FullName: fullName, Payload: code})
}

func (f *FakeNotifier) SendPasswordResetEmail(_ context.Context, email, fullName, resetURL string) error {
	return f.record(SentEmail{Kind: "reset", Email: email, FullName: fullName, Payload: resetURL})
}

func (f *FakeNotifier) record(m SentEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, m)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (f *FakeNotifier) Sent() []SentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentEmail(nil), f.sent...)
}

// Last returns the most recent delivery of kind, if any.
func (f *FakeNotifier) Last(kind string) (SentEmail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Kind == kind {
			return f.sent[i], true
		}
	}
	return SentEmail{}, false
}
