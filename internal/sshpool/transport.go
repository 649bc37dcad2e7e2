package sshpool

import (
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// Transport is an authenticated SSH session reusable for multiple
// concurrent channels. The pool owns its lifetime exclusively; callers
// never close one directly.
type Transport struct {
	key    ConnectionKey
	client *ssh.Client
}

// connectTimeout bounds the initial authenticated dial.
const connectTimeout = 30 * time.Second

func dial(key ConnectionKey, username, password string) (*Transport, error) {
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		// Accept-any host key policy: appropriate for a diagnostic tool on
		// a trusted network, never for anything public.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", key.Address, key.Port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, err
	}
	return &Transport{key: key, client: client}, nil
}

// NewSession opens a new SSH session (channel) on the shared transport.
// Every worker and discovery helper gets its own independent channel;
// SSH multiplexing guarantees no cross-channel byte interleaving.
func (t *Transport) NewSession() (*ssh.Session, error) {
	return t.client.NewSession()
}

// SSHClient exposes the underlying client for callers (sftp, discovery)
// that need lower-level access than a single exec'd session.
func (t *Transport) SSHClient() *ssh.Client {
	return t.client
}

func (t *Transport) close() error {
	return t.client.Close()
}
