package wsupgrade

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/joeycumines/netloop/headers"
	"github.com/joeycumines/netloop/pipeline"
)

// writeUpgradeResponse writes a "101 Switching Protocols" status line
// followed by resp's headers to ch's connection, CRLF-terminated per
// RFC 7230.
func writeUpgradeResponse(ch *pipeline.Channel, resp headers.Set) error {
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := make([]byte, 0, 256)
	buf = append(buf, "HTTP/1.1 101 Switching Protocols\r\n"...)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			buf = append(buf, fmt.Sprintf("%s: %s\r\n", name, v)...)
		}
	}
	buf = append(buf, "\r\n"...)

	_, err := ch.Conn.Write(buf)
	return errors.Wrap(err, "wsupgrade: writing upgrade response")
}
