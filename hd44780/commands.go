// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

// Instruction bytes, sent with SendCommand.
const (
	Line1              byte = 0x80 // DDRAM address of line 1
	Line2              byte = 0xc0 // DDRAM address of line 2
	ClearDisplay       byte = 0x01 // clear, cursor home
	ReturnHome         byte = 0x02 // cursor home, DDRAM unchanged
	EntryDecrement     byte = 0x04
	EntryIncrement     byte = 0x06
	DisplayOff         byte = 0x08
	DisplayOn          byte = 0x0c // cursor off
	DisplayCursor      byte = 0x0e
	DisplayCursorBlink byte = 0x0f
	CursorLeft         byte = 0x10
	CursorRight        byte = 0x14
	ShiftLeft          byte = 0x18
	ShiftRight         byte = 0x1c
	FuncSet4           byte = 0x28 // 4-bit, 2 lines, 5x8
	FuncSet8           byte = 0x38 // 8-bit, 2 lines, 5x8
	SetCGRAM           byte = 0x40

	// funcTwoLines is the N bit of the function set instruction.
	funcTwoLines byte = 0x08
	// entryShift is the S bit of the entry mode instruction.
	entryShift byte = 0x01

	// D, C and B bits of the display control instruction.
	displayOnBit  byte = 0x04
	displayCursor byte = 0x02
	displayBlink  byte = 0x01
	displayBits        = displayOnBit | displayCursor | displayBlink
)

const (
	busyFlag = 0x80
	dataMask = 0xf0
)
