// Package config loads the device catalog and database connection
// settings this poller needs at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DBConfig holds the MySQL connection parameters, read from the
// environment (optionally populated from a .env file).
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// LoadDotEnv loads a .env file if present. A missing file is not an
// error — the process may get its environment from the shell or the
// surrounding orchestrator instead.
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		logrus.Debugf("no .env file loaded from %q: %v", path, err)
	}
}

// LoadDBConfig reads DB_HOST, DB_PORT, DB_USERNAME, DB_PASSWORD and
// DB_DATABASE from the environment, applying the same development
// defaults the original tool used when a variable is unset.
func LoadDBConfig() DBConfig {
	return DBConfig{
		Host:     envOr("DB_HOST", "127.0.0.1"),
		Port:     envOr("DB_PORT", "3306"),
		Username: envOr("DB_USERNAME", "root"),
		Password: envOr("DB_PASSWORD", ""),
		Database: envOr("DB_DATABASE", "caldera"),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// DSN builds a go-sql-driver/mysql data source name from this config.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.Username, c.Password, c.Host, c.Port, c.Database)
}

// MachineSpec is one physical press position on a line: a display name
// (e.g. "mc2") and the four register addresses that hold its TH/Side
// samples for the L and R sides.
type MachineSpec struct {
	Name      string
	ID        int
	AddrTHL   int
	AddrTHR   int
	AddrSideL int
	AddrSideR int
}

// DeviceSpec is one networked Modbus device: a stable id, display name,
// IP, and the ordered set of lines/machines it serves.
type DeviceSpec struct {
	ID       int
	Name     string
	IP       string
	Lines    map[string][]MachineSpec
	LineKeys []string // insertion order, for stable iteration
}

type rawMachine struct {
	Name      string `json:"name"`
	AddrTHL   int    `json:"addr_th_l"`
	AddrTHR   int    `json:"addr_th_r"`
	AddrSideL int    `json:"addr_side_l"`
	AddrSideR int    `json:"addr_side_r"`
}

type rawLine struct {
	Line        string       `json:"line"`
	ListMechine []rawMachine `json:"list_mechine"`
	Machines    []rawMachine `json:"machines"`
}

// ParseDeviceConfig turns one device row's JSON `config` document into a
// DeviceSpec. Line names are uppercased; lines with no machines are
// dropped.
func ParseDeviceConfig(id int, name, ip string, configJSON []byte) (DeviceSpec, error) {
	var raw []rawLine
	if err := json.Unmarshal(configJSON, &raw); err != nil {
		return DeviceSpec{}, fmt.Errorf("parsing device %d config: %w", id, err)
	}

	spec := DeviceSpec{ID: id, Name: name, IP: ip, Lines: map[string][]MachineSpec{}}
	for _, rl := range raw {
		machines := rl.ListMechine
		if len(machines) == 0 {
			machines = rl.Machines
		}
		if len(machines) == 0 {
			continue
		}
		line := strings.ToUpper(strings.TrimSpace(rl.Line))
		specs := make([]MachineSpec, 0, len(machines))
		for _, m := range machines {
			specs = append(specs, MachineSpec{
				Name:      m.Name,
				ID:        extractDigits(m.Name),
				AddrTHL:   m.AddrTHL,
				AddrTHR:   m.AddrTHR,
				AddrSideL: m.AddrSideL,
				AddrSideR: m.AddrSideR,
			})
		}
		if _, exists := spec.Lines[line]; !exists {
			spec.LineKeys = append(spec.LineKeys, line)
		}
		spec.Lines[line] = append(spec.Lines[line], specs...)
	}
	return spec, nil
}

func extractDigits(name string) int {
	var b strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

// FallbackDevice is the compatibility single-device catalog used when no
// device loads from the store at all. It exists so the process still
// comes up rather than idling with nothing to poll; see DESIGN.md for
// why this remains a runtime fallback rather than being removed.
func FallbackDevice() DeviceSpec {
	return DeviceSpec{
		ID:   0,
		Name: "fallback",
		IP:   "127.0.0.1",
		Lines: map[string][]MachineSpec{
			"L1": {
				{Name: "mc1", ID: 1, AddrTHL: 0, AddrTHR: 1, AddrSideL: 2, AddrSideR: 3},
			},
		},
		LineKeys: []string{"L1"},
	}
}
