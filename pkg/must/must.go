package must

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pipforge/pipcore/pkg/logging"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"
)

func Fprint(w io.Writer, logger *logging.Logger, a ...any) {
	s := fmt.Sprint(a...)
	n, err := fmt.Fprint(w, s)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to Fprint '%s': %w", s, err))
	}
	if n < len(s) {
		logger.Warn(fmt.Errorf("unable to Fprint all of '%s'; printed only %d of %d bytes", s, n, len(s)))
	}
}

func Close(c io.Closer, logger *logging.Logger) {
	err := c.Close()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to close: %w", err))
	}
}

func Serve(ws interface{ Serve(net.Listener) error }, nl net.Listener, logger *logging.Logger) {
	err := ws.Serve(nl)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to serve '%s': %w", nl.Addr(), err))
	}
}

func WriteString(ws interface{ WriteString(string) (int, error) }, s string, logger *logging.Logger) {
	n, err := ws.WriteString(s)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to write string '%s': %w", s, err))
	}
	if n < len(s) {
		logger.Warn(fmt.Errorf("unable to write all of string '%s'; only wrote %d of %d bytes", s, n, len(s)))
	}
}

func CloseWrite(cw interface{ CloseWrite() error }, logger *logging.Logger) {
	err := cw.CloseWrite()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to CloseWrite: %w", err))
	}
}

func Signal(s interface{ Signal(os.Signal) error }, sig os.Signal, logger *logging.Logger) {
	err := s.Signal(sig)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to signal '%s': %w", sig, err))
	}
}

func Terminate(s interface{ Terminate() error }, logger *logging.Logger) {
	err := s.Terminate()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to terminate: %w", err))
	}
}

func Finalize(s interface{ Finalize() error }, logger *logging.Logger) {
	err := s.Finalize()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to finalize: %w", err))
	}
}

func Remove(r interface{ Remove(string) error }, path string, logger *logging.Logger) {
	err := r.Remove(path)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to remove '%s': %w", path, err))
	}
}

func Unlock(locker interface{ Unlock() error }, logger *logging.Logger) {
	err := locker.Unlock()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to unlock locker: %w", err))
	}
}

func OSRemove(name string, logger *logging.Logger) {
	err := os.Remove(name)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to remove '%s': %w", name, err))
	}
}

func Truncate(t interface{ Truncate(int64) error }, size int64, logger *logging.Logger) {
	err := t.Truncate(size)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to truncate to size %d: %w", size, err))
	}
}

func Kill(s interface{ Kill() error }, logger *logging.Logger) {
	err := s.Kill()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to Kill: %w", err))
	}
}

func IOCopy(dst io.Writer, src io.Reader, logger *logging.Logger) {
	_, err := io.Copy(dst, src)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to copy from source to destination: %w", err))
	}
}

func CommandHelp(c *cobra.Command, logger *logging.Logger) {
	err := c.Help()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to help: %w", err))
	}
}

func RemoveFile(rf interface{ RemoveFile(string) error }, name string, logger *logging.Logger) {
	err := rf.RemoveFile(name)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to remove file '%s': %w", name, err))
	}
}

func Shutdown(sd interface{ Shutdown() error }, logger *logging.Logger) {
	err := sd.Shutdown()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to shutdown: %w", err))
	}
}

func Flush(sd interface{ Flush() error }, logger *logging.Logger) {
	err := sd.Flush()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to flush: %w", err))
	}
}

func Release(r interface{ Release() error }, logger *logging.Logger) {
	err := r.Release()
	if err != nil {
		logger.Warn(fmt.Errorf("unable to release: %w", err))
	}
}

func ProtoEncode(e interface {
	Encode(message proto.Message) error
}, message proto.Message, logger *logging.Logger) {
	err := e.Encode(message)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to proto encode %v: %w", message, err))
	}
}

func Encode(e interface {
	Encode(e any) error
}, value any, logger *logging.Logger) {
	err := e.Encode(value)
	if err != nil {
		logger.Warn(fmt.Errorf("unable to encode %v: %w", value, err))
	}
}

func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warn(fmt.Errorf("unable to succeed at %s: %w", task, err))
	}
}
