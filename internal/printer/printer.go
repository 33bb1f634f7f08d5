// Package printer передаёт готовые документы чека в подсистему печати хоста.
package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Format описывает формат документа, который принимает принтер.
type Format string

const (
	FormatHTML   Format = "html"
	FormatESCPOS Format = "escpos"
)

// Тип принтера из конфигурации.
const (
	TypeNone    = "none"
	TypeSpool   = "spool"
	TypeCommand = "command"
	TypeNetwork = "network"
)

// ErrNotConfigured возвращается при неполной конфигурации принтера.
var ErrNotConfigured = errors.New("printer not configured")

// Job описывает одно задание печати.
type Job struct {
	Name string
	Data []byte
}

// Printer принимает самодостаточный документ и печатает его средствами хоста.
type Printer interface {
	Print(ctx context.Context, job Job) error
	Format() Format
	IsConnected() bool
	Close() error
}

// Status содержит сведения о настроенном принтере.
type Status struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Type       string `json:"type"`
	Format     Format `json:"format"`
}

// Config содержит параметры подключения принтера.
type Config struct {
	Type     string
	Address  string
	SpoolDir string
	Command  string
}

// New создаёт принтер нужного типа.
func New(cfg Config) (Printer, error) {
	switch cfg.Type {
	case TypeNone, "":
		return NewNullPrinter(), nil
	case TypeSpool:
		if cfg.SpoolDir == "" {
			return nil, fmt.Errorf("%w: spool directory is required", ErrNotConfigured)
		}
		return NewSpoolPrinter(cfg.SpoolDir), nil
	case TypeCommand:
		if cfg.Command == "" {
			return nil, fmt.Errorf("%w: print command is required", ErrNotConfigured)
		}
		return NewCommandPrinter(cfg.Command), nil
	case TypeNetwork:
		if cfg.Address == "" {
			return nil, fmt.Errorf("%w: address is required", ErrNotConfigured)
		}
		return NewNetworkPrinter(cfg.Address), nil
	default:
		return nil, fmt.Errorf("unknown printer type %q (use none, spool, command or network)", cfg.Type)
	}
}

// GetStatus возвращает состояние принтера.
func GetStatus(p Printer, printerType string) Status {
	return Status{
		Configured: printerType != TypeNone && printerType != "",
		Connected:  p.IsConnected(),
		Type:       printerType,
		Format:     p.Format(),
	}
}

type nullPrinter struct{}

// NewNullPrinter создаёт принтер-заглушку для окружений без печати.
func NewNullPrinter() Printer {
	return nullPrinter{}
}

func (nullPrinter) Print(context.Context, Job) error { return nil }
func (nullPrinter) Format() Format                  { return FormatHTML }
func (nullPrinter) IsConnected() bool               { return false }
func (nullPrinter) Close() error                    { return nil }

// SpoolPrinter складывает HTML-документы в каталог очереди печати.
type SpoolPrinter struct {
	dir string
}

// NewSpoolPrinter создаёт принтер, пишущий документы в каталог dir.
func NewSpoolPrinter(dir string) *SpoolPrinter {
	return &SpoolPrinter{dir: dir}
}

// Print записывает документ в файл <name>.html.
func (p *SpoolPrinter) Print(_ context.Context, job Job) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	path := filepath.Join(p.dir, fileName(job.Name))
	if err := os.WriteFile(path, job.Data, 0o644); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	return nil
}

func (p *SpoolPrinter) Format() Format { return FormatHTML }

func (p *SpoolPrinter) IsConnected() bool {
	info, err := os.Stat(p.dir)
	return err == nil && info.IsDir()
}

func (p *SpoolPrinter) Close() error { return nil }

// CommandPrinter печатает документ командой хоста, например lp.
// Документ временно сохраняется в файл, который удаляется после печати.
type CommandPrinter struct {
	command string
}

// NewCommandPrinter создаёт принтер, вызывающий command с путём к файлу документа.
func NewCommandPrinter(command string) *CommandPrinter {
	return &CommandPrinter{command: command}
}

// Print выполняет команду печати.
func (p *CommandPrinter) Print(ctx context.Context, job Job) error {
	f, err := os.CreateTemp("", "receipt-*.html")
	if err != nil {
		return fmt.Errorf("stage document: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(job.Data); err != nil {
		f.Close()
		return fmt.Errorf("stage document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage document: %w", err)
	}

	out, err := exec.CommandContext(ctx, p.command, f.Name()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", p.command, err, out)
	}
	return nil
}

func (p *CommandPrinter) Format() Format { return FormatHTML }

func (p *CommandPrinter) IsConnected() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

func (p *CommandPrinter) Close() error { return nil }

// NetworkPrinter отправляет поток ESC/POS по TCP, например на 192.168.1.100:9100.
type NetworkPrinter struct {
	address string
	timeout time.Duration
}

// NewNetworkPrinter создаёт сетевой термопринтер.
func NewNetworkPrinter(address string) *NetworkPrinter {
	return &NetworkPrinter{
		address: address,
		timeout: 5 * time.Second,
	}
}

// Print отправляет данные на принтер.
func (p *NetworkPrinter) Print(ctx context.Context, job Job) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", p.address, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write(job.Data); err != nil {
		return fmt.Errorf("write to %s: %w", p.address, err)
	}
	return nil
}

func (p *NetworkPrinter) Format() Format { return FormatESCPOS }

func (p *NetworkPrinter) IsConnected() bool {
	conn, err := net.DialTimeout("tcp", p.address, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *NetworkPrinter) Close() error { return nil }

func fileName(name string) string {
	if name == "" {
		name = "receipt-" + time.Now().Format("20060102-150405.000")
	}
	return filepath.Base(name) + ".html"
}
