package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jlaffaye/ftp"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

// DefaultFTPPort is used when no port is configured.
const DefaultFTPPort = 21

// FTPConfig describes one FTP endpoint.
type FTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// DialFTP connects and logs in. The returned connection must be Quit by the
// caller.
func DialFTP(ctx context.Context, cfg FTPConfig) (*ftp.ServerConn, error) {
	const op = "remote.DialFTP"

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultFTPPort
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, port)

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	)
	if err != nil {
		return nil, fherrors.Wrap(fherrors.KindNetwork, fherrors.CodeConnectFailed, op, err)
	}

	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fherrors.Wrap(fherrors.KindAuth, fherrors.CodeAuthFailed, op, err)
	}
	return conn, nil
}
