package portal

import (
	"strconv"
	"sync"
)

// Element names a part of the page a Presenter can show, hide or fill.
type Element string

// Sections and controls toggled with SetVisible.
const (
	ElemLogin        Element = "login"
	ElemLoginError   Element = "login_error"
	ElemDeletion     Element = "deletion"
	ElemPending      Element = "pending"
	ElemConfirm      Element = "confirm"
	ElemCancel       Element = "cancel"
	ElemCancelPrompt Element = "cancel_prompt"
	ElemLoading      Element = "loading"
	ElemError        Element = "error"
	ElemSuccess      Element = "success"
)

// Text fields filled with SetText.
const (
	TextLoginEmail    Element = "login_email"
	TextLoginError    Element = "login_error_message"
	TextUserEmail     Element = "user_email"
	TextRequestedAt   Element = "requested_at"
	TextDeletionDate  Element = "deletion_date"
	TextDaysRemaining Element = "days_remaining"
	TextMessage       Element = "message"
	TextError         Element = "error_message"
	TextSuccess       Element = "success_message"
	TextCancelIntent  Element = "cancel_intent"
)

// Presenter is the presentation layer driven by the controller.
type Presenter interface {
	SetVisible(el Element, visible bool)
	SetText(el Element, text string)
}

// Snapshot is the full observable state of a Screen.
type Snapshot struct {
	LoginVisible        bool   `json:"login_visible"`
	LoginErrorVisible   bool   `json:"login_error_visible"`
	LoginError          string `json:"login_error,omitempty"`
	LoginEmail          string `json:"login_email,omitempty"`
	DeletionVisible     bool   `json:"deletion_visible"`
	PendingVisible      bool   `json:"pending_visible"`
	ConfirmVisible      bool   `json:"confirm_visible"`
	CancelVisible       bool   `json:"cancel_visible"`
	CancelPromptVisible bool   `json:"cancel_prompt_visible"`
	CancelIntentID      string `json:"cancel_intent_id,omitempty"`
	Loading             bool   `json:"loading"`
	ErrorVisible        bool   `json:"error_visible"`
	ErrorMessage        string `json:"error_message,omitempty"`
	SuccessVisible      bool   `json:"success_visible"`
	SuccessMessage      string `json:"success_message,omitempty"`
	UserEmail           string `json:"user_email,omitempty"`
	RequestedAt         string `json:"requested_at,omitempty"`
	DeletionDate        string `json:"deletion_date,omitempty"`
	DaysRemaining       int    `json:"days_remaining"`
	Message             string `json:"message,omitempty"`
	Version             uint64 `json:"version"`
}

// Screen is an in-memory Presenter. HTTP pages render from its Snapshot and
// websocket clients subscribe to its changes.
type Screen struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

// Compile-time check that Screen satisfies Presenter.
var _ Presenter = (*Screen)(nil)

// NewScreen returns a blank screen.
func NewScreen() *Screen {
	return &Screen{subs: make(map[int]chan Snapshot)}
}

// SetVisible shows or hides el. Unknown elements are ignored.
func (s *Screen) SetVisible(el Element, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch el {
	case ElemLogin:
		s.snap.LoginVisible = visible
	case ElemLoginError:
		s.snap.LoginErrorVisible = visible
	case ElemDeletion:
		s.snap.DeletionVisible = visible
	case ElemPending:
		s.snap.PendingVisible = visible
	case ElemConfirm:
		s.snap.ConfirmVisible = visible
	case ElemCancel:
		s.snap.CancelVisible = visible
	case ElemCancelPrompt:
		s.snap.CancelPromptVisible = visible
	case ElemLoading:
		s.snap.Loading = visible
	case ElemError:
		s.snap.ErrorVisible = visible
	case ElemSuccess:
		s.snap.SuccessVisible = visible
	default:
		return
	}
	s.publishLocked()
}

// SetText sets the text of el. Unknown elements are ignored.
func (s *Screen) SetText(el Element, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch el {
	case TextLoginEmail:
		s.snap.LoginEmail = text
	case TextLoginError:
		s.snap.LoginError = text
	case TextUserEmail:
		s.snap.UserEmail = text
	case TextRequestedAt:
		s.snap.RequestedAt = text
	case TextDeletionDate:
		s.snap.DeletionDate = text
	case TextDaysRemaining:
		n, err := strconv.Atoi(text)
		if err != nil {
			return
		}
		s.snap.DaysRemaining = n
	case TextMessage:
		s.snap.Message = text
	case TextError:
		s.snap.ErrorMessage = text
	case TextSuccess:
		s.snap.SuccessMessage = text
	case TextCancelIntent:
		s.snap.CancelIntentID = text
	default:
		return
	}
	s.publishLocked()
}

// Snapshot returns a copy of the current state.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel that always holds the latest snapshot after a
// change. Intermediate snapshots may be dropped. The current state is sent at once.
func (s *Screen) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.snap
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Screen) publishLocked() {
	s.snap.Version++
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.snap
	}
}
