// Package sync defines the remote synchronization provider contract named
// in spec.md §6 and provides one reference implementation, LocalProvider.
// The remote object-store push/pull mechanism itself is an external
// collaborator per spec.md §1 Out-of-scope — only the contract plus a
// directory-to-directory provider (grounded on original sync/local.rs) are
// specified here.
package sync

import "context"

// AuthState is the authentication state machine named in spec.md §6.
type AuthState int

const (
	NotAuthenticated AuthState = iota
	Pending
	Authenticated
	AuthError
)

// AuthStatus reports the current auth state plus any state-specific detail.
type AuthStatus struct {
	State     AuthState
	UserCode  string // set only when State == Pending
	VerifyURL string // set only when State == Pending
	Reason    string // set only when State == AuthError
}

// Options configures a single pull or push.
type Options struct {
	Encrypt  bool
	Compress bool
}

// PullResult reports the outcome of Provider.Pull.
type PullResult struct {
	HasChanges   bool
	NewFiles     []string
	UpdatedFiles []string
}

// PushResult reports the outcome of Provider.Push.
type PushResult struct {
	Success     bool
	FilesPushed int
	Message     string
}

// Provider is the sync backend contract of spec.md §6. Implementations
// range from a local filesystem mirror (LocalProvider) to a remote
// object-store client (out of scope for this module — supplied externally).
type Provider interface {
	Name() string
	IsAuthenticated() bool
	AuthStatus() AuthStatus
	StartAuth(ctx context.Context) (AuthStatus, error)
	CompleteAuth(ctx context.Context, code string) (AuthStatus, error)

	Pull(ctx context.Context, vaultDir string, opts Options) (PullResult, error)
	Push(ctx context.Context, vaultDir string, opts Options) (PushResult, error)

	HasLocalChanges(ctx context.Context, vaultDir string) (bool, error)
	HasRemoteChanges(ctx context.Context, vaultDir string) (bool, error)

	EnableEncryption(passphrase string) error
}
