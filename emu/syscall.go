package emu

import "io"

// RISC-V Linux syscall numbers.
const (
	SyscallRead  uint32 = 63 // read(fd, buf, count)
	SyscallWrite uint32 = 64 // write(fd, buf, count)
	SyscallExit  uint32 = 93 // exit(status)
)

// Linux error codes.
const (
	EBADF  = 9  // Bad file descriptor
	ENOSYS = 38 // Function not implemented
	EIO    = 5  // I/O error
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling environment calls.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// RISC-V Linux syscall convention:
	//   - Syscall number in a7
	//   - Arguments in a0-a5
	//   - Return value in a0
	Handle() SyscallResult
}

// DefaultSyscallHandler provides a basic syscall handler implementation.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(RegA7) {
	case SyscallRead:
		return h.handleRead()
	case SyscallWrite:
		return h.handleWrite()
	case SyscallExit:
		return SyscallResult{
			Exited:   true,
			ExitCode: int64(int32(h.regFile.ReadReg(RegA0))),
		}
	default:
		h.setError(ENOSYS)
		return SyscallResult{}
	}
}

func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.regFile.ReadReg(RegA0)
	bufPtr := h.regFile.ReadReg(RegA1)
	count := h.regFile.ReadReg(RegA2)

	if fd != 0 {
		h.setError(EBADF)
		return SyscallResult{}
	}

	// EOF when no stdin is configured
	if h.stdin == nil {
		h.regFile.WriteReg(RegA0, 0)
		return SyscallResult{}
	}

	buf := make([]byte, count)
	n, err := h.stdin.Read(buf)
	if err != nil && n == 0 {
		h.regFile.WriteReg(RegA0, 0)
		return SyscallResult{}
	}

	h.memory.LoadProgram(bufPtr, buf[:n])
	h.regFile.WriteReg(RegA0, uint32(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regFile.ReadReg(RegA0)
	bufPtr := h.regFile.ReadReg(RegA1)
	count := h.regFile.ReadReg(RegA2)

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	default:
		h.setError(EBADF)
		return SyscallResult{}
	}

	n, err := writer.Write(h.memory.ReadBytes(bufPtr, int(count)))
	if err != nil {
		h.setError(EIO)
		return SyscallResult{}
	}

	h.regFile.WriteReg(RegA0, uint32(n))
	return SyscallResult{}
}

// setError sets a0 to -errno.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(RegA0, uint32(-int32(errno)))
}
