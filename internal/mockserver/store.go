// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// ErrChatNotFound is returned for an unknown chat id.
var ErrChatNotFound = errors.New("chat not found")

// maxTitleWidth bounds the title derived from a chat's first message.
const maxTitleWidth = 40

type storedChat struct {
	summary  model.ChatSummary
	userID   string
	messages []model.Message
}

// Store keeps chats in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	chats  map[string]*storedChat
	byUser map[string][]string
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		chats:  make(map[string]*storedChat),
		byUser: make(map[string][]string),
		now:    time.Now,
	}
}

// NewChatID returns a fresh chat id. Chat ids never parse as UUIDs so they
// cannot be mistaken for user ids.
func NewChatID() string {
	return "chat_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// TitleFrom derives a chat title from its first message.
func TitleFrom(text string) string {
	return util.TruncateWidth(util.FirstLine(strings.TrimSpace(text)), maxTitleWidth)
}

// Create adds an empty chat for userID and returns its summary.
func (s *Store) Create(userID, title string) model.ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &storedChat{
		summary: model.ChatSummary{
			ChatID:    NewChatID(),
			CreatedAt: model.Timestamp{Time: s.now().UTC()},
			Title:     title,
		},
		userID:   userID,
		messages: []model.Message{},
	}
	s.chats[c.summary.ChatID] = c
	s.byUser[userID] = append(s.byUser[userID], c.summary.ChatID)
	return c.summary
}

// List returns the chats of userID, newest first. Unknown users have none.
func (s *Store) List(userID string) []model.ChatSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]model.ChatSummary, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		out = append(out, s.chats[id].summary)
	}
	return out
}

// History returns a copy of the chat chatID with its messages.
func (s *Store) History(chatID string) (*model.ChatHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil, false
	}
	return &model.ChatHistory{
		ChatID:    c.summary.ChatID,
		CreatedAt: c.summary.CreatedAt,
		Title:     c.summary.Title,
		Messages:  model.CloneMessages(c.messages),
	}, true
}

// Has reports whether chatID exists.
func (s *Store) Has(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chats[chatID]
	return ok
}

// Append stores a message in chatID with a fresh id and timestamp.
func (s *Store) Append(chatID string, role model.Role, text string, meta map[string]any) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return model.Message{}, ErrChatNotFound
	}
	msg := model.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Role:      role,
		CreatedAt: model.Timestamp{Time: s.now().UTC()},
		Meta:      meta,
	}
	c.messages = append(c.messages, msg)
	return msg, nil
}

// Len returns the number of stored chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}
