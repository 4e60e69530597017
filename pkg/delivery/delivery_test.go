package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeProber struct {
	failures int
	calls    int
}

func (p *fakeProber) Probe(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("no route to host")
	}
	return nil
}

type recordingTransfer struct {
	mu    sync.Mutex
	files []string
	fail  map[string]bool
}

func (r *recordingTransfer) Transfer(_ context.Context, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, src)
	if r.fail[src] {
		return errors.New("rsync: connection unexpectedly closed")
	}
	return nil
}

type recordingRunner struct {
	commands []string
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.commands = append(r.commands, strings.Join(append([]string{name}, args...), " "))
	return nil, nil
}

func newTestUploader(p Prober, tr Transferer) *Uploader {
	log, _ := test.NewNullLogger()
	return &Uploader{
		Prober:          p,
		Transfer:        tr,
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Logger:          log,
	}
}

func TestDeliverAfterRetries(t *testing.T) {
	p := &fakeProber{failures: 3}
	tr := &recordingTransfer{}
	u := newTestUploader(p, tr)

	if err := u.Deliver(context.Background(), []string{"182_ht.bson", "182_pyr.bson"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if p.calls != 4 {
		t.Fatalf("probe calls: got %d want 4", p.calls)
	}
	if diff := cmp.Diff([]string{"182_ht.bson", "182_pyr.bson"}, tr.files); diff != "" {
		t.Fatalf("transferred (-want +got):\n%s", diff)
	}
}

func TestDeliverGivesUpAfterBudget(t *testing.T) {
	p := &fakeProber{failures: 100}
	tr := &recordingTransfer{}
	u := newTestUploader(p, tr)

	err := u.Deliver(context.Background(), []string{"182_ht.bson"})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}
	if p.calls != 5 {
		t.Fatalf("probe calls: got %d want 5", p.calls)
	}
	if len(tr.files) != 0 {
		t.Fatalf("nothing should be transferred, got %v", tr.files)
	}
}

func TestDeliverContinuesPastFailedTransfer(t *testing.T) {
	tr := &recordingTransfer{fail: map[string]bool{"a": true}}
	u := newTestUploader(&fakeProber{}, tr)

	err := u.Deliver(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected transfer error")
	}
	if diff := cmp.Diff([]string{"a", "b"}, tr.files); diff != "" {
		t.Fatalf("transferred (-want +got):\n%s", diff)
	}
}

func TestDeliverRunsModemCommandsAndExtraGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"181.log", "182.log"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	runner := &recordingRunner{}
	tr := &recordingTransfer{}
	u := newTestUploader(&fakeProber{}, tr)
	u.Run = runner.run
	u.ConnectCommand = "sudo umtskeeper --sakisoperators 'OP=\"Vodafone\"'"
	u.DisconnectCommand = "sudo sakis3g disconnect"
	u.ExtraGlobs = []string{filepath.Join(dir, "*.log")}

	logFile := filepath.Join(dir, "182.log")
	if err := u.Deliver(context.Background(), []string{"182_ht.bson", logFile}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	want := []string{"182_ht.bson", logFile, filepath.Join(dir, "181.log")}
	if diff := cmp.Diff(want, tr.files); diff != "" {
		t.Fatalf("transferred (-want +got):\n%s", diff)
	}
	wantCmds := []string{
		`sudo umtskeeper --sakisoperators OP="Vodafone"`,
		"sudo sakis3g disconnect",
	}
	if diff := cmp.Diff(wantCmds, runner.commands); diff != "" {
		t.Fatalf("commands (-want +got):\n%s", diff)
	}
}

func TestCommandTransfer(t *testing.T) {
	var got []string
	tr := &CommandTransfer{
		Template:    "rsync -vahz --partial --inplace {src} {dst}",
		Destination: "pi@example.org:/data/",
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			got = append([]string{name}, args...)
			return nil, nil
		},
	}
	if err := tr.Transfer(context.Background(), "/home/pi/DATA_x/182 ht.bson"); err != nil {
		t.Fatal(err)
	}
	want := []string{"rsync", "-vahz", "--partial", "--inplace", "/home/pi/DATA_x/182 ht.bson", "pi@example.org:/data/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("argv (-want +got):\n%s", diff)
	}
}

func TestCommandTransferReportsOutput(t *testing.T) {
	tr := &CommandTransfer{
		Template: "rsync {src} {dst}",
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("rsync error: some files could not be transferred\n"), errors.New("exit status 23")
		},
	}
	err := tr.Transfer(context.Background(), "f")
	if err == nil || !strings.Contains(err.Error(), "could not be transferred") {
		t.Fatalf("error should carry command output, got %v", err)
	}
}

func TestCommandRejectsEmptyTemplate(t *testing.T) {
	if _, err := Command("   ", nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Command(`rsync "unterminated`, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	p := &HTTPProber{URL: srv.URL, Timeout: time.Second}
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("any response counts as reachable: %v", err)
	}
	srv.Close()
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("closed server should be unreachable")
	}
}
