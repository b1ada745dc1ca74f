// Package engine drives external UCI chess engines used as the computer
// opponent's move source.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned by calls on an engine whose process has exited.
var ErrEngineClosed = errors.New("engine closed")

// SearchOptions bound a single best-move search.
type SearchOptions struct {
	SkillLevel int           // UCI "Skill Level", 0-20; negative leaves it unset
	MoveTime   time.Duration // passed as "go movetime"
}

// UCIEngine represents a UCI-compatible chess engine process
type UCIEngine struct {
	ID uuid.UUID

	cmd *exec.Cmd

	stdinPipe  io.WriteCloser
	stdoutPipe io.ReadCloser
	reader     *bufio.Reader

	mutex    sync.Mutex
	quitChan chan struct{}
	done     chan struct{}

	readyChan    chan struct{}
	BestMoveChan chan string

	logger *zap.Logger
}

// NewUCIEngine starts the engine process and waits for the UCI handshake.
// enginePath is the path to the engine executable (e.g. "stockfish")
func NewUCIEngine(ctx context.Context, enginePath string, logger *zap.Logger) (*UCIEngine, error) {
	cmd := exec.Command(enginePath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("StdoutPipe error: %w", err)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("StdinPipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting engine: %w", err)
	}

	id := uuid.New()
	e := &UCIEngine{
		ID:           id,
		cmd:          cmd,
		stdinPipe:    stdin,
		stdoutPipe:   stdout,
		reader:       bufio.NewReader(stdout),
		quitChan:     make(chan struct{}),
		done:         make(chan struct{}),
		readyChan:    make(chan struct{}, 1),
		BestMoveChan: make(chan string, 1),
		logger:       logger.With(zap.String("engine_id", id.String())),
	}

	go e.readLoop()

	// Initialize UCI mode
	if err := e.writeCommand("uci"); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("error sending uci cmd: %w", err)
	}
	if err := e.waitReady(ctx); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("engine handshake: %w", err)
	}

	return e, nil
}

func (e *UCIEngine) readLoop() {
	defer close(e.done)

	for {
		select {
		case <-e.quitChan:
			return
		default:
		}

		line, err := e.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				e.logger.Debug("engine closed stdout")
			} else {
				e.logger.Warn("error reading engine output", zap.Error(err))
			}
			return
		}
		line = strings.TrimSpace(line)

		e.logger.Debug("engine output", zap.String("line", line))

		switch {
		case line == "uciok", line == "readyok":
			select {
			case e.readyChan <- struct{}{}:
			default:
			}

		case strings.HasPrefix(line, "bestmove"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				// Send bestMove into the channel without blocking.
				select {
				case e.BestMoveChan <- fields[1]:
				default:
				}
			}
		}
	}
}

func (e *UCIEngine) waitReady(ctx context.Context) error {
	select {
	case <-e.readyChan:
		return nil
	case <-e.done:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *UCIEngine) writeCommand(cmd string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	_, err := io.WriteString(e.stdinPipe, cmd+"\n")
	return err
}

// Close asks the engine to quit and waits for the process to exit.
func (e *UCIEngine) Close() error {
	select {
	case <-e.quitChan:
		return nil
	default:
		close(e.quitChan)
	}

	_ = e.writeCommand("quit")
	_ = e.stdinPipe.Close()

	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		_ = e.cmd.Process.Kill()
		<-e.done
	}

	if err := e.cmd.Wait(); err != nil {
		return err
	}
	return nil
}

// SetOption sets a UCI option.
func (e *UCIEngine) SetOption(name, value string) error {
	return e.writeCommand(fmt.Sprintf("setoption name %s value %s", name, value))
}

// BestMove searches the position given as FEN and returns the engine's move
// in UCI notation.
func (e *UCIEngine) BestMove(ctx context.Context, fen string, opts SearchOptions) (string, error) {
	if opts.SkillLevel >= 0 {
		if err := e.SetOption("Skill Level", strconv.Itoa(opts.SkillLevel)); err != nil {
			return "", err
		}
	}
	if err := e.writeCommand("isready"); err != nil {
		return "", err
	}
	if err := e.waitReady(ctx); err != nil {
		return "", err
	}

	// readyok follows any bestmove of an earlier, abandoned search, so a
	// stale result is already queued by now
	select {
	case <-e.BestMoveChan:
	default:
	}

	if err := e.writeCommand("position fen " + fen); err != nil {
		return "", err
	}

	moveTime := opts.MoveTime
	if moveTime <= 0 {
		moveTime = 100 * time.Millisecond
	}
	if err := e.writeCommand("go movetime " + strconv.FormatInt(moveTime.Milliseconds(), 10)); err != nil {
		return "", err
	}

	select {
	case mv := <-e.BestMoveChan:
		if mv == "(none)" {
			return "", errors.New("engine found no move")
		}
		return mv, nil
	case <-e.done:
		return "", ErrEngineClosed
	case <-ctx.Done():
		_ = e.writeCommand("stop")
		return "", ctx.Err()
	}
}
