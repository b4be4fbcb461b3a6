// internal/remote/dispatch.go
// Package remote exposes the monitor over an MQTT command channel and
// publishes detection events, replacing the original serial link.
package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gfalqueto/crywatch/internal/detect"
)

// Controller is what a remote command can do to the running monitor.
// *detect.Monitor satisfies it.
type Controller interface {
	SetEnabled(enabled bool)
	Enabled() bool
	Interrupt()
	ForceCycle(ctx context.Context) (detect.CycleResult, error)
}

// VolumeSetter adjusts melody volume at runtime. Optional: a nil setter
// makes the volume command report unavailable.
type VolumeSetter interface {
	SetVolume(percent int) error
}

// StatusSink mirrors detect.StatusSink for the msg command.
type StatusSink interface {
	Show(line1, line2 string)
}

// Dispatcher maps textual commands onto the controller. It holds no
// transport state, so command handling is testable without a broker.
type Dispatcher struct {
	ctrl   Controller
	volume VolumeSetter
	status StatusSink
}

// NewDispatcher creates a dispatcher. volume and status may be nil.
func NewDispatcher(ctrl Controller, volume VolumeSetter, status StatusSink) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, volume: volume, status: status}
}

// Dispatch executes one command and returns the reply text. The command
// vocabulary matches the original control link: ligar, desligar, parar,
// status, leitura, volume:N, msg:TEXT.
func (d *Dispatcher) Dispatch(ctx context.Context, command string) string {
	cmd := strings.ToLower(strings.TrimSpace(command))

	switch {
	case cmd == "ligar":
		d.ctrl.SetEnabled(true)
		return "Sistema ativado."

	case cmd == "desligar":
		d.ctrl.SetEnabled(false)
		return "Sistema desativado."

	case cmd == "parar":
		d.ctrl.Interrupt()
		return "Música parada."

	case cmd == "status":
		if d.ctrl.Enabled() {
			return "Ativo"
		}
		return "Inativo"

	case cmd == "leitura":
		result, err := d.ctrl.ForceCycle(ctx)
		if err != nil {
			return fmt.Sprintf("Erro na leitura: %v", err)
		}
		verdict := "NÃO"
		if result.Crying {
			verdict = "SIM"
		}
		return fmt.Sprintf("Leitura - Choro: %s (%.5f)", verdict, result.Energy)

	case strings.HasPrefix(cmd, "volume:"):
		return d.setVolume(strings.TrimPrefix(cmd, "volume:"))

	case strings.HasPrefix(cmd, "msg:"):
		// Keep the original casing of the message body.
		text := strings.TrimSpace(strings.TrimSpace(command)[len("msg:"):])
		if d.status != nil {
			d.status.Show("Msg:", text)
		}
		return fmt.Sprintf("Mensagem mostrada: %s", text)

	default:
		return fmt.Sprintf("Comando desconhecido: %s", cmd)
	}
}

func (d *Dispatcher) setVolume(arg string) string {
	if d.volume == nil {
		return "Ajuste de volume indisponível."
	}

	val, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return "Erro ao interpretar volume."
	}
	if val < 0 || val > 100 {
		return "Valor de volume fora do intervalo (0-100)."
	}
	if err := d.volume.SetVolume(val); err != nil {
		return fmt.Sprintf("Erro ao ajustar volume: %v", err)
	}

	return fmt.Sprintf("Volume ajustado para %d%%", val)
}
