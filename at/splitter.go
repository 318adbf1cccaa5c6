package at

import (
	"bufio"
	"bytes"
)

// Splitter is used for tokenizing lines from the provisioner module. It has
// the signature of bufio.SplitFunc so it can be used directly with
// bufio.Scanner.
//
// Either \r or \n terminates a line. The module usually sends CRLF pairs,
// in which case the second byte of the pair surfaces as an empty token that
// the consumer discards. Splitting on each delimiter byte individually
// keeps the framer correct when the module sends bare \r or bare \n lines.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter
