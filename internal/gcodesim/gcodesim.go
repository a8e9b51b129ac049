// Package gcodesim reads the demo CLI's minimal move-file format and
// turns it into planner submissions. It is deliberately not a G-code
// parser (spec.md §1 excludes that): the format is a handful of
// whitespace-separated line kinds meant only to exercise
// submit_accel_line/submit_dwell/submit_mcode from the command line.
//
//	line X Y Z A B C minutes
//	dwell seconds
//	mcode N
//	tool N
//	spindle RPM
package gcodesim

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/Leealpha1/TinyG/internal/planner"
)

// Move is one parsed line of the move file.
type Move struct {
	Kind     MoveKind
	Target   [planner.NumAxes]float64
	Minutes  float64
	Seconds  float64
	Code     int
	RPM      float64
	LineNo   int
	RawLine  string
}

// MoveKind is the variant of one parsed Move.
type MoveKind int

const (
	MoveLine MoveKind = iota
	MoveDwell
	MoveMCode
	MoveTool
	MoveSpindle
)

// ReadFile parses every line of the move file at path on fs, skipping
// blank lines and lines starting with '#'.
func ReadFile(fs afero.Fs, path string) ([]Move, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gcodesim: open %s: %w", path, err)
	}
	defer f.Close()

	var moves []Move
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		mv, err := parseLine(text, lineNo)
		if err != nil {
			return nil, err
		}
		moves = append(moves, mv)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gcodesim: read %s: %w", path, err)
	}
	return moves, nil
}

func parseLine(text string, lineNo int) (Move, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Move{}, fmt.Errorf("gcodesim: line %d: empty", lineNo)
	}

	mv := Move{LineNo: lineNo, RawLine: text}
	switch strings.ToLower(fields[0]) {
	case "line":
		if len(fields) != 1+planner.NumAxes+1 {
			return Move{}, fmt.Errorf("gcodesim: line %d: want %d fields after \"line\", got %d", lineNo, planner.NumAxes+1, len(fields)-1)
		}
		mv.Kind = MoveLine
		for i := 0; i < planner.NumAxes; i++ {
			v, err := strconv.ParseFloat(fields[1+i], 64)
			if err != nil {
				return Move{}, fmt.Errorf("gcodesim: line %d: axis %d: %w", lineNo, i, err)
			}
			mv.Target[i] = v
		}
		minutes, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return Move{}, fmt.Errorf("gcodesim: line %d: minutes: %w", lineNo, err)
		}
		mv.Minutes = minutes

	case "dwell":
		if len(fields) != 2 {
			return Move{}, fmt.Errorf("gcodesim: line %d: want \"dwell seconds\"", lineNo)
		}
		seconds, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Move{}, fmt.Errorf("gcodesim: line %d: seconds: %w", lineNo, err)
		}
		mv.Kind = MoveDwell
		mv.Seconds = seconds

	case "mcode":
		if len(fields) != 2 {
			return Move{}, fmt.Errorf("gcodesim: line %d: want \"mcode N\"", lineNo)
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return Move{}, fmt.Errorf("gcodesim: line %d: code: %w", lineNo, err)
		}
		mv.Kind = MoveMCode
		mv.Code = code

	case "tool":
		if len(fields) != 2 {
			return Move{}, fmt.Errorf("gcodesim: line %d: want \"tool N\"", lineNo)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Move{}, fmt.Errorf("gcodesim: line %d: tool id: %w", lineNo, err)
		}
		mv.Kind = MoveTool
		mv.Code = id

	case "spindle":
		if len(fields) != 2 {
			return Move{}, fmt.Errorf("gcodesim: line %d: want \"spindle RPM\"", lineNo)
		}
		rpm, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Move{}, fmt.Errorf("gcodesim: line %d: rpm: %w", lineNo, err)
		}
		mv.Kind = MoveSpindle
		mv.RPM = rpm

	default:
		return Move{}, fmt.Errorf("gcodesim: line %d: unrecognised directive %q", lineNo, fields[0])
	}
	return mv, nil
}

// Submit replays moves against p in order. Moves refused with
// planner.ResultZeroLengthMove are passed over. It returns the index of the
// first move that returned any other non-Ok result or an error, with that
// result and error, or len(moves), planner.ResultOk, nil if none did.
func Submit(p *planner.Planner, moves []Move) (int, planner.Result, error) {
	for i, mv := range moves {
		var res planner.Result
		var err error
		switch mv.Kind {
		case MoveLine:
			res, err = p.SubmitAccelLine(mv.Target, mv.Minutes, false)
		case MoveDwell:
			res, err = p.SubmitDwell(mv.Seconds)
		case MoveMCode:
			res, err = p.SubmitMCode(mv.Code)
		case MoveTool:
			res, err = p.SubmitTool(mv.Code)
		case MoveSpindle:
			res, err = p.SubmitSpindleSpeed(mv.RPM)
		}
		if err != nil || (res != planner.ResultOk && res != planner.ResultZeroLengthMove) {
			return i, res, err
		}
	}
	return len(moves), planner.ResultOk, nil
}
