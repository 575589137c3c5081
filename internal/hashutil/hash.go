package hashutil

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/partyhub-games/partyhub/internal/bytespool"
	"github.com/valyala/fastrand"
)

// codeAlphabet deliberately omits characters players confuse when typing a
// join code from someone else's screen (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// SerializedSha1FromTime derives a hex identifier from the current
// nanosecond clock. Drawing records use it as their ID.
func SerializedSha1FromTime() string {
	buf := bytespool.Get()
	defer func() {
		buf.Reset()
		bytespool.Put(buf)
	}()
	buf.WriteString(strconv.FormatInt(time.Now().UnixNano(), 10))
	hash := sha1.New()
	hash.Write(buf.Bytes())
	return hex.EncodeToString(hash.Sum(nil))
}

// JoinCode returns a short human-typable session code of the given length.
// Uniqueness is the caller's job: regenerate on collision.
func JoinCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[fastrand.Uint32n(uint32(len(codeAlphabet)))]
	}
	return string(b)
}
