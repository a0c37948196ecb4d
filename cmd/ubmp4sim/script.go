// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/ubmp4/ubmp4"
)

// hold is a pushbutton held down for a number of program loops.
type hold struct {
	sw    ubmp4.Switch
	loops int
}

// parseScript parses "SW2:60,SW3:1".
func parseScript(s string) ([]hold, error) {
	var out []hold
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, n, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("script: %q: expected SWn:loops", item)
		}
		sw, err := parseSwitch(name)
		if err != nil {
			return nil, err
		}
		loops, err := strconv.Atoi(strings.ReplaceAll(n, "_", ""))
		if err != nil || loops < 1 {
			return nil, fmt.Errorf("script: %q: invalid loop count", item)
		}
		out = append(out, hold{sw: sw, loops: loops})
	}
	return out, nil
}

func parseSwitch(name string) (ubmp4.Switch, error) {
	for sw := ubmp4.SW1; sw <= ubmp4.SW5; sw++ {
		if strings.EqualFold(name, sw.String()) {
			return sw, nil
		}
	}
	return 0, fmt.Errorf("script: unknown pushbutton %q", name)
}
