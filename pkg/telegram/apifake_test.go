package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mymmrac/telego"
)

// fakeAPI records every Bot API call so tests can assert on the exact
// outbound traffic without a live bot.
type fakeAPI struct {
	mu sync.Mutex

	sends     []*telego.SendMessageParams
	edits     []*telego.EditMessageTextParams
	photos    []*telego.SendPhotoParams
	documents []*telego.SendDocumentParams
	voices    []*telego.SendVoiceParams
	videos    []*telego.SendVideoParams
	setCmds   []*telego.SetMyCommandsParams
	delCmds   []*telego.DeleteMyCommandsParams

	nextMessageID int

	failSend bool
	// failSendHTML rejects only sends that carry a parse mode.
	failSendHTML bool
	failEdit     bool
	// failEditHTML rejects only edits that carry a parse mode, the shape of
	// a malformed-entities error from Telegram.
	failEditHTML bool
	failSetCmds  bool
	failDelCmds  bool
}

func (f *fakeAPI) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend || (f.failSendHTML && params.ParseMode != "") {
		return nil, errors.New("send rejected")
	}
	f.sends = append(f.sends, params)
	f.nextMessageID++
	return &telego.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit || (f.failEditHTML && params.ParseMode != "") {
		return nil, errors.New("edit rejected")
	}
	f.edits = append(f.edits, params)
	return &telego.Message{MessageID: params.MessageID}, nil
}

func (f *fakeAPI) SendPhoto(_ context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, params)
	f.nextMessageID++
	return &telego.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeAPI) SendDocument(_ context.Context, params *telego.SendDocumentParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, params)
	f.nextMessageID++
	return &telego.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeAPI) SendVoice(_ context.Context, params *telego.SendVoiceParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, params)
	f.nextMessageID++
	return &telego.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeAPI) SendVideo(_ context.Context, params *telego.SendVideoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, params)
	f.nextMessageID++
	return &telego.Message{MessageID: f.nextMessageID}, nil
}

func (f *fakeAPI) GetFile(_ context.Context, params *telego.GetFileParams) (*telego.File, error) {
	return &telego.File{FileID: params.FileID, FilePath: "documents/" + params.FileID}, nil
}

func (f *fakeAPI) SetMyCommands(_ context.Context, params *telego.SetMyCommandsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetCmds {
		return errors.New("set commands rejected")
	}
	f.setCmds = append(f.setCmds, params)
	return nil
}

func (f *fakeAPI) DeleteMyCommands(_ context.Context, params *telego.DeleteMyCommandsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelCmds {
		return errors.New("delete commands rejected")
	}
	f.delCmds = append(f.delCmds, params)
	return nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sends))
	for i, p := range f.sends {
		out[i] = p.Text
	}
	return out
}

func (f *fakeAPI) editTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.edits))
	for i, p := range f.edits {
		out[i] = p.Text
	}
	return out
}

// newTestAdapter wires a bare adapter around the fake, skipping New so tests
// need no token or network.
func newTestAdapter(fake *fakeAPI) *Adapter {
	return &Adapter{
		api:         fake,
		connections: NewConnectionTable(),
		maxLen:      4096,
		throttle:    defaultThrottle,
		now:         time.Now,
		username:    "testbot",
		fileURL: func(filePath string) string {
			return "https://files.example/" + filePath
		},
	}
}

// tickingClock returns a clock that jumps forward by step on every reading,
// so each throttle comparison sees a fresh interval.
func tickingClock(step time.Duration) func() time.Time {
	base := time.Unix(1700000000, 0)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * step)
	}
}

// frozenClock never advances, keeping every edit inside the throttle window.
func frozenClock() func() time.Time {
	base := time.Unix(1700000000, 0)
	return func() time.Time { return base }
}
