package lanrudp

import (
	"testing"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

func TestValidateRejectsOutOfRangeMaxClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 0
	if err := cfg.Validate(); err != ErrCapacityExceeded {
		t.Errorf("MaxClients=0: err = %v, want ErrCapacityExceeded", err)
	}

	cfg.MaxClients = protocol.MaxPeers + 1
	if err := cfg.Validate(); err != ErrCapacityExceeded {
		t.Errorf("MaxClients=%d: err = %v, want ErrCapacityExceeded", cfg.MaxClients, err)
	}

	cfg.MaxClients = protocol.MaxPeers
	if err := cfg.Validate(); err != nil {
		t.Errorf("MaxClients=%d: err = %v, want nil", cfg.MaxClients, err)
	}
}

func TestValidateAllowsServerConfigWithNoUsername(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("a server Config with no username should validate, got %v", err)
	}
}

func TestValidateASCIINameRejectsNonASCIIAndOverlong(t *testing.T) {
	if err := validateASCIIName(""); err != ErrInvalidUsername {
		t.Errorf("empty username: err = %v, want ErrInvalidUsername", err)
	}
	if err := validateASCIIName("héllo"); err != ErrInvalidUsername {
		t.Errorf("non-ASCII username: err = %v, want ErrInvalidUsername", err)
	}

	overlong := make([]byte, protocol.DefaultUsernameMaxBytes+1)
	for i := range overlong {
		overlong[i] = 'a'
	}
	if err := validateASCIIName(string(overlong)); err != ErrInvalidUsername {
		t.Errorf("overlong username: err = %v, want ErrInvalidUsername", err)
	}

	if err := validateASCIIName("plain_ascii"); err != nil {
		t.Errorf("valid username: err = %v, want nil", err)
	}
}
