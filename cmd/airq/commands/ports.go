// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// silabsVendorID is the USB vendor id of the CP210x bridge found on AirQ
// boards, used as a selection fallback when no description keyword matches.
const silabsVendorID = "10C4"

// portKeywords are checked in order against port names and descriptions; the
// first keyword with any match decides the auto-selected port.
var portKeywords = []string{
	"airq",
	"cp210",
	"ch340",
	"ch910",
	"ft232",
	"usb serial",
	"usbserial",
	"usb-serial",
}

// PortInfo is a snapshot of one enumerated serial port. VendorID and
// ProductID are uppercase 4-hex-digit strings when the enumeration source
// provides them, empty otherwise.
type PortInfo struct {
	Name        string
	Description string
	VendorID    string
	ProductID   string
	Source      string
}

// Enumeration hooks, swapped out in tests.
var (
	detailedPortsList = enumerator.GetDetailedPortsList
	basicPortsList    = serial.GetPortsList
)

// ListPorts enumerates the available serial ports, sorted by name. The
// identity-rich enumerator is tried first; if it fails the bare name listing
// is used instead. An empty result is valid and never an error.
func ListPorts() []PortInfo {
	if details, err := detailedPortsList(); err == nil {
		res := make([]PortInfo, 0, len(details))
		for _, d := range details {
			p := PortInfo{
				Name:        d.Name,
				Description: d.Product,
				Source:      "enumerator",
			}
			if d.IsUSB {
				p.VendorID = strings.ToUpper(d.VID)
				p.ProductID = strings.ToUpper(d.PID)
			}
			res = append(res, p)
		}
		sortPorts(res)
		return res
	}

	names, err := basicPortsList()
	if err != nil {
		return nil
	}
	res := make([]PortInfo, 0, len(names))
	for _, name := range names {
		res = append(res, PortInfo{Name: name, Source: "basic"})
	}
	sortPorts(res)
	return res
}

func sortPorts(ports []PortInfo) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
}

// SelectBestPort picks the most likely AirQ port. Keyword matches on the
// description or name win over a vendor-id match, which wins over the first
// port in catalog order. Returns false only for an empty catalog.
func SelectBestPort(ports []PortInfo) (PortInfo, bool) {
	if len(ports) == 0 {
		return PortInfo{}, false
	}
	for _, keyword := range portKeywords {
		for _, p := range ports {
			if strings.Contains(strings.ToLower(p.Description), keyword) ||
				strings.Contains(strings.ToLower(p.Name), keyword) {
				return p, true
			}
		}
	}
	for _, p := range ports {
		if p.VendorID == silabsVendorID {
			return p, true
		}
	}
	return ports[0], true
}

// PortExists reports whether the named port is currently enumerable.
func PortExists(port string) bool {
	for _, p := range ListPorts() {
		if p.Name == port {
			return true
		}
	}
	return false
}

// ConfiguredPort returns the remembered port from the environment or the
// user config, or "" when neither is set.
func ConfiguredPort() string {
	if port, ok := os.LookupEnv(directory.PortEnv); ok {
		return port
	}
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return ""
	}
	return cfg.GetString(directory.PortCfgKey)
}

// ResolvePort turns the --port flag value into a concrete port name. An
// explicit flag wins unconditionally. Otherwise the remembered port is used
// when it is still attached, and failing that the catalog heuristic decides.
func ResolvePort(flagPort string) (string, error) {
	if flagPort != "" {
		return flagPort, nil
	}
	if configured := ConfiguredPort(); configured != "" && PortExists(configured) {
		return configured, nil
	}
	best, ok := SelectBestPort(ListPorts())
	if !ok {
		return "", &PortNotFound{}
	}
	return best.Name, nil
}

func PortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ports",
		Short:        "List the available serial ports",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports := ListPorts()
			if len(ports) == 0 {
				fmt.Println("No serial ports detected.")
				return nil
			}

			best, _ := SelectBestPort(ports)
			fmt.Printf("%-3s %-24s %-10s %-12s %s\n", "", "PORT", "VID:PID", "SOURCE", "DESCRIPTION")
			for _, p := range ports {
				mark := ""
				if p.Name == best.Name {
					mark = "*"
				}
				ids := ""
				if p.VendorID != "" {
					ids = p.VendorID + ":" + p.ProductID
				}
				fmt.Printf("%-3s %-24s %-10s %-12s %s\n", mark, p.Name, ids, p.Source, p.Description)
			}
			return nil
		},
	}
	return cmd
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set-port",
		Short:        "Select the serial port you want to use",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			port, err := pickPort(all)
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}
			cfg.Set(directory.PortCfgKey, port)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("Using serial port '%s'\n", port)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	return cmd
}

func pickPort(all bool) (string, error) {
	ports := ListPorts()
	if !all {
		ports = filterLikelyPorts(ports)
	}
	if len(ports) == 0 {
		return "", &PortNotFound{}
	}

	items := make([]string, len(ports))
	for i, p := range ports {
		if p.Description != "" {
			items[i] = fmt.Sprintf("%s  (%s)", p.Name, p.Description)
		} else {
			items[i] = p.Name
		}
	}

	prompt := promptui.Select{
		Label:     "Choose what serial port you want to use",
		Items:     items,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i].Name, nil
}

// filterLikelyPorts drops ports that are clearly not USB-serial bridges, so
// the picker isn't cluttered with Bluetooth endpoints and on-board UARTs.
func filterLikelyPorts(ports []PortInfo) []PortInfo {
	var res []PortInfo
	for _, p := range ports {
		if strings.Contains(p.Name, "Bluetooth") {
			continue
		}
		if p.VendorID != "" {
			res = append(res, p)
			continue
		}
		name := strings.ToLower(p.Name)
		if strings.Contains(name, "usb") || strings.Contains(name, "acm") {
			res = append(res, p)
		}
	}
	return res
}
