package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
)

type callLog struct {
	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
}

func (l *callLog) begin(name string) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
	l.inFlight++
	if l.inFlight > l.maxInFlight {
		l.maxInFlight = l.inFlight
	}
	return func() {
		l.mu.Lock()
		l.inFlight--
		l.mu.Unlock()
	}
}

func (l *callLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
	l.maxInFlight = 0
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.names() {
		if c == name {
			n++
		}
	}
	return n
}

type serverFake struct {
	log *callLog

	mu           sync.Mutex
	stored       int
	markup       string
	saveResult   domain.SaveResult
	renderErr    error
	saveErr      error
	autoSaveErr  error
	submitErr    error
	removeErr    error
	descErr      error
	uploadURLErr map[int]error
	payloads     []domain.ResponsePayload
	descriptions []string
}

func (f *serverFake) RenderSubmission(context.Context) (string, error) {
	defer f.log.begin("render")()
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return f.markup, nil
}

func (f *serverFake) AutoSave(_ context.Context, payload domain.ResponsePayload) (domain.SaveResult, error) {
	defer f.log.begin("autosave")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.autoSaveErr != nil {
		return domain.SaveResult{}, f.autoSaveErr
	}
	return domain.SaveResult{}, nil
}

func (f *serverFake) Save(_ context.Context, payload domain.ResponsePayload) (domain.SaveResult, error) {
	defer f.log.begin("save")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.saveErr != nil {
		return domain.SaveResult{}, f.saveErr
	}
	return f.saveResult, nil
}

func (f *serverFake) Submit(_ context.Context, payload domain.ResponsePayload) error {
	defer f.log.begin("submit")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.submitErr
}

func (f *serverFake) UploadURL(_ context.Context, _ string, _ string, index int) (string, error) {
	defer f.log.begin(fmt.Sprintf("upload_url:%d", index))()
	if err := f.uploadURLErr[index]; err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if index+1 > f.stored {
		f.stored = index + 1
	}
	return fmt.Sprintf("https://upload.test/%d", index), nil
}

func (f *serverFake) DownloadURL(_ context.Context, index int) (string, error) {
	defer f.log.begin(fmt.Sprintf("download_url:%d", index))()
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= f.stored {
		return "", nil
	}
	return fmt.Sprintf("https://files.test/%d", index), nil
}

func (f *serverFake) RemoveUploadedFiles(context.Context) error {
	defer f.log.begin("remove_files")()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	f.stored = 0
	f.mu.Unlock()
	return nil
}

func (f *serverFake) SaveFileDescriptions(_ context.Context, descriptions []string) error {
	defer f.log.begin("save_descriptions")()
	if f.descErr != nil {
		return f.descErr
	}
	f.descriptions = descriptions
	return nil
}

type transferFake struct {
	log    *callLog
	failOn string
	bodies map[string]string
	// started and release, when set, pause each transfer until the test
	// lets it continue.
	started chan struct{}
	release chan struct{}
}

func (f *transferFake) Upload(_ context.Context, _ string, file domain.FileDescriptor, body io.Reader) error {
	defer f.log.begin("put:" + file.Name)()
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.failOn == file.Name {
		return fmt.Errorf("storage rejected %s", file.Name)
	}
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[file.Name] = string(data)
	return nil
}

type sourceFake struct {
	files     map[string]domain.FileDescriptor
	verifyErr map[string]error
}

func (f *sourceFake) add(name, mime string, size int64) string {
	if f.files == nil {
		f.files = map[string]domain.FileDescriptor{}
	}
	path := "/tmp/" + name
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	f.files[path] = domain.FileDescriptor{Name: name, Path: path, SizeBytes: size, MimeType: mime, Extension: ext}
	return path
}

func (f *sourceFake) Describe(_ context.Context, path string) (domain.FileDescriptor, error) {
	file, ok := f.files[path]
	if !ok {
		return domain.FileDescriptor{}, fmt.Errorf("no such file %s", path)
	}
	return file, nil
}

func (f *sourceFake) Verify(_ context.Context, file domain.FileDescriptor) error {
	return f.verifyErr[file.Path]
}

func (f *sourceFake) Open(_ context.Context, file domain.FileDescriptor) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("bytes of " + file.Name)), nil
}

type gateFake struct {
	answers []bool
	prompts []domain.PromptKind
	err     error
}

func (f *gateFake) Confirm(_ context.Context, prompt domain.Prompt) (bool, error) {
	f.prompts = append(f.prompts, prompt.Kind)
	if f.err != nil {
		return false, f.err
	}
	if len(f.answers) == 0 {
		return true, nil
	}
	answer := f.answers[0]
	f.answers = f.answers[1:]
	return answer, nil
}

type presenterFake struct {
	mu        sync.Mutex
	controls  map[domain.Control]bool
	statuses  map[domain.ErrorScope]string
	warnings  map[string]bool
	verdicts  []domain.Verdict
	uploaded  []string
	markups   []string
	readOnly  bool
	clearings int
}

func newPresenterFake() *presenterFake {
	return &presenterFake{
		controls: map[domain.Control]bool{},
		statuses: map[domain.ErrorScope]string{},
		warnings: map[string]bool{},
	}
}

func (f *presenterFake) SetControlEnabled(control domain.Control, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls[control] = enabled
}

func (f *presenterFake) SetStatus(scope domain.ErrorScope, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[scope] = message
}

func (f *presenterFake) SetUnsavedWarning(key string, visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings[key] = visible
}

func (f *presenterFake) RenderVerdict(verdict domain.Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts = append(f.verdicts, verdict)
}

func (f *presenterFake) ShowUploadedFile(index int, downloadURL, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, fmt.Sprintf("%d|%s|%s", index, downloadURL, description))
}

func (f *presenterFake) ClearFileDescriptions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearings++
}

func (f *presenterFake) ShowMarkup(markup string, readOnly bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markups = append(f.markups, markup)
	f.readOnly = readOnly
}

func (f *presenterFake) control(c domain.Control) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls[c]
}

type notifierFake struct {
	events []domain.SubmissionEvent
	err    error
}

func (f *notifierFake) Advance(_ context.Context, event domain.SubmissionEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type harness struct {
	log       *callLog
	server    *serverFake
	transfer  *transferFake
	sources   *sourceFake
	gate      *gateFake
	presenter *presenterFake
	notifier  *notifierFake
	editor    *Editor
}

func codePolicy() domain.QuestionPolicy {
	return domain.QuestionPolicy{
		ProblemName:   "Sample Coding Question 1",
		TextMode:      domain.RequirementRequired,
		FileMode:      domain.RequirementOptional,
		UploadType:    domain.UploadTypePDFAndImage,
		MaxTotalBytes: 1000,
		MaxFiles:      domain.DefaultMaxFiles,
	}
}

func newHarness(t *testing.T, policy domain.QuestionPolicy) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:       log,
		server:    &serverFake{log: log, markup: "<div class=\"response\"></div>"},
		transfer:  &transferFake{log: log},
		sources:   &sourceFake{},
		gate:      &gateFake{},
		presenter: newPresenterFake(),
		notifier:  &notifierFake{},
	}
	h.editor = NewEditor(policy, EditorDeps{
		Server:    h.server,
		Transfer:  h.transfer,
		Files:     h.sources,
		Gate:      h.gate,
		Presenter: h.presenter,
		Notifier:  h.notifier,
	}, 0)
	return h
}

// load brings the editor to a clean Editing state and forgets load calls.
func (h *harness) load(t *testing.T, text, language string) {
	t.Helper()
	if err := h.editor.Load(context.Background(), text, language); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h.log.reset()
}

func (h *harness) selectAndDescribe(t *testing.T, names ...string) {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, h.sources.add(name, "image/png", 10))
	}
	if err := h.editor.SelectFiles(context.Background(), paths); err != nil {
		t.Fatalf("SelectFiles() error = %v", err)
	}
	for i, name := range names {
		if err := h.editor.DescribeFile(i, "description of "+name); err != nil {
			t.Fatalf("DescribeFile(%d) error = %v", i, err)
		}
	}
}

func equalCalls(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
