// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package devices is a container for the UBMP4 character LCD driver, the
// board programs and the simulation used to run them without hardware.
//
//	port        8-bit registers with shared lines, simulated
//	pcf857x     PCF8574/PCF8575 I²C I/O expanders
//	hd44780     the LCD driver
//	hd44780sim  a simulated LCD controller
//	lcdview     terminal and PNG rendering of a simulated LCD
//	ubmp4       the board: pushbuttons, LEDs and LCD header
//	counter     the button counter program
//	lcddemo     the LCD greeting program
package devices
