package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

// resolveDevice doplní chybějící identitu uzlu.
// MAC bere z prvního ne-loopback rozhraní, ID odvodí z posledních dvou bajtů MAC (ESP32-XXXX).
func resolveDevice(id, mac string) Device {
	if mac == "" {
		mac = primaryMAC()
	}
	if id == "" {
		id = deviceIDFromMAC(mac)
	}
	return Device{ID: id, MAC: mac}
}

func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 6 {
			continue
		}
		return strings.ToUpper(iface.HardwareAddr.String())
	}
	return ""
}

func deviceIDFromMAC(mac string) string {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) < 2 {
		return "ESP32-0000"
	}
	return fmt.Sprintf("ESP32-%02X%02X", hw[len(hw)-2], hw[len(hw)-1])
}

// NewEvent vytvoří událost s novým UUID.
func (d Device) NewEvent(kind EventKind, reason string, chipTemp *float64, now time.Time) Event {
	return Event{
		ID:              uuid.NewString(),
		DeviceID:        d.ID,
		MAC:             d.MAC,
		Kind:            kind,
		Reason:          reason,
		ChipTemperature: chipTemp,
		Timestamp:       now.UTC().Truncate(time.Second),
	}
}

// ChipThermometer vrací teplotu čipu, nebo nil, pokud ji platforma nehlásí.
type ChipThermometer func(ctx context.Context) *float64

// readChipTemperature čte teplotní čidla přes gopsutil a vrací to nejteplejší.
// gopsutil může vrátit částečná data spolu s chybou (Warnings), ta bereme.
func readChipTemperature(ctx context.Context) *float64 {
	temps, _ := host.SensorsTemperaturesWithContext(ctx)
	return hottest(temps)
}

func hottest(temps []host.TemperatureStat) *float64 {
	var best *float64
	for _, t := range temps {
		if math.IsNaN(t.Temperature) || t.Temperature <= 0 {
			continue
		}
		if best == nil || t.Temperature > *best {
			v := t.Temperature
			best = &v
		}
	}
	return best
}
