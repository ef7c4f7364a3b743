package sftpclient

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "h", User: "u", Pass: "p"}.withDefaults()

	if cfg.Port != 22 {
		t.Errorf("Expected Port to default to 22, got %d", cfg.Port)
	}
	if cfg.RemoteDir != "/" {
		t.Errorf("Expected RemoteDir to default to /, got %q", cfg.RemoteDir)
	}
}

func TestHostKeyCallback(t *testing.T) {
	if _, err := (Config{}).hostKeyCallback(); err == nil {
		t.Error("Expected error without known hosts or insecure flag")
	}
	if cb, err := (Config{InsecureIgnoreHostKey: true}).hostKeyCallback(); err != nil || cb == nil {
		t.Errorf("Expected insecure callback, got %v", err)
	}
	if _, err := (Config{KnownHosts: filepath.Join(t.TempDir(), "missing")}).hostKeyCallback(); err == nil {
		t.Error("Expected error for missing known_hosts file")
	}
}

func TestUploadFileValidation(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name          string
		cfg           Config
		localPath     string
		errorContains string
	}{
		{
			name:          "Missing credentials",
			cfg:           Config{},
			localPath:     "report.csv",
			errorContains: ErrMissingCredentials.Error(),
		},
		{
			name:          "No host key policy",
			cfg:           Config{Host: "h", User: "u", Pass: "p"},
			localPath:     "report.csv",
			errorContains: "SFTP_KNOWN_HOSTS",
		},
		{
			name:          "Missing local file",
			cfg:           Config{Host: "h", User: "u", Pass: "p", InsecureIgnoreHostKey: true},
			localPath:     filepath.Join(t.TempDir(), "missing.csv"),
			errorContains: "sftp: open local file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := UploadFile(ctx, tc.cfg, tc.localPath, "report.csv")
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.errorContains) {
				t.Errorf("Expected error to contain %q, got %q", tc.errorContains, err.Error())
			}
		})
	}

	if err := UploadFile(ctx, Config{}, "x", "y"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

// newPipeClient connects an sftp client to an in-memory server.
func newPipeClient(t *testing.T) *sftp.Client {
	t.Helper()
	client, closeAll := pipeClient(t)
	t.Cleanup(closeAll)
	return client
}

func pipeClient(t *testing.T) (*sftp.Client, func()) {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	server := sftp.NewRequestServer(struct {
		io.Reader
		io.WriteCloser
	}{c2sR, s2cW}, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(s2cR, c2sW)
	if err != nil {
		t.Fatalf("sftp client: %v", err)
	}
	// server first: client.Close waits for its reader, which only returns
	// once the server end of the pipe is closed
	return client, func() {
		server.Close()
		s2cW.Close()
		c2sR.Close()
		client.Close()
	}
}

func TestPipeClientShutsDown(t *testing.T) {
	_, closeAll := pipeClient(t)

	done := make(chan struct{})
	go func() {
		closeAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected client and server to shut down")
	}
}

func TestUploadWritesRemoteFile(t *testing.T) {
	client := newPipeClient(t)

	if err := upload(client, "/reports/2024", "run.csv", strings.NewReader("RUN_ID\r\nabc\r\n")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f, err := client.Open("/reports/2024/run.csv")
	if err != nil {
		t.Fatalf("Expected remote file, got %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read remote file: %v", err)
	}
	if string(got) != "RUN_ID\r\nabc\r\n" {
		t.Errorf("Unexpected remote content %q", got)
	}
}
