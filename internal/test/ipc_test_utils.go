// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package testutil contains helpers shared by the tests of efdstream packages
// and by the test peer programs they launch.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// StringToBytes takes an input string in a 2-hex-symbol per byte format
// and returns corresponding byte array.
// Input must not contain any symbols except [A-F0-9]
func StringToBytes(input string) ([]byte, error) {
	if len(input)%2 != 0 {
		return nil, fmt.Errorf("invalid byte array len")
	}
	var err error
	var b byte
	buff := bytes.NewBuffer(nil)
	for err == nil {
		if len(input) < 2 {
			err = io.EOF
		} else if _, err = fmt.Sscanf(input[:2], "%X", &b); err == nil {
			buff.WriteByte(b)
			input = input[2:]
		}
	}
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buff.Bytes(), nil
}

// BytesToString convert a byte slice into its string representation.
// Each byte is represented as a 2 upper-case letters for A-F
func BytesToString(data []byte) string {
	buff := bytes.NewBuffer(nil)
	for _, value := range data {
		if value < 16 { // force leading 0 for 1-digit values
			buff.WriteString("0")
		}
		buff.WriteString(fmt.Sprintf("%X", value))
	}
	return buff.String()
}

// WaitForFunc calls f asynchronously leaving it some time to finish.
// It returns true, if f completed.
func WaitForFunc(f func(), d time.Duration) bool {
	ch := make(chan bool, 1)
	go func() {
		f()
		ch <- true
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

// WaitForErrChan waits for a value from ch with a timeout.
// It returns false, if nothing was received.
func WaitForErrChan(ch <-chan error, d time.Duration) (bool, error) {
	select {
	case value := <-ch:
		return true, value
	case <-time.After(d):
		return false, nil
	}
}

// HelperArgs returns the arguments passed to a test binary after the '--' separator.
// It is used by test peer programs, which re-execute the test binary.
func HelperArgs() []string {
	for i, arg := range os.Args {
		if arg == "--" {
			return os.Args[i+1:]
		}
	}
	return nil
}

// HelperTestArgs returns the arguments to re-execute the current test binary
// running only the given test function, followed by the '--' separator.
func HelperTestArgs(testName string) []string {
	return []string{"-test.run=^" + testName + "$", "--"}
}

// IsHexString returns true, if s is a valid input for StringToBytes.
func IsHexString(s string) bool {
	return len(s)%2 == 0 && strings.Trim(s, "0123456789ABCDEF") == ""
}
