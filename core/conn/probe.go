package conn

import (
	"encoding/hex"
	"fmt"

	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

// KeyEncoding selects how the user's password is presented to the key PRAGMA.
type KeyEncoding int

const (
	// KeyPassphrase passes the password through the cipher's KDF.
	KeyPassphrase KeyEncoding = iota
	// KeyHex passes the password's bytes hex-encoded as a raw key.
	KeyHex
	// KeyRawHex treats the password text as an already hex-encoded raw key.
	KeyRawHex
)

func (e KeyEncoding) String() string {
	switch e {
	case KeyHex:
		return "hex"
	case KeyRawHex:
		return "raw-hex"
	default:
		return "passphrase"
	}
}

// Cipher is one supported cipher family with its typed parameters. It is a
// closed set: adding a family means adding a type here and a probe entry
// below, and the compiler flags every switch that misses it.
type Cipher interface {
	// Family names the cipher family for error reporting.
	Family() string
	// pragmas returns the configuration statements issued on a fresh
	// handle before the key is set.
	pragmas() []string
}

// SQLCipher covers the Zetetic SQLCipher formats. Version selects the
// on-disk layout (4 is current; 1-3 are legacy).
type SQLCipher struct {
	Version int
}

func (c SQLCipher) Family() string { return "sqlcipher" }

func (c SQLCipher) pragmas() []string {
	return []string{
		"PRAGMA cipher = 'sqlcipher'",
		fmt.Sprintf("PRAGMA legacy = %d", c.Version),
	}
}

// ChaCha20 covers the sqleet stream-cipher format. Legacy selects the old
// page layout; KDFIter overrides the derivation rounds when nonzero.
type ChaCha20 struct {
	Legacy  int
	KDFIter int
}

func (c ChaCha20) Family() string { return "chacha20" }

func (c ChaCha20) pragmas() []string {
	ps := []string{"PRAGMA cipher = 'chacha20'"}
	if c.Legacy > 0 {
		ps = append(ps, fmt.Sprintf("PRAGMA legacy = %d", c.Legacy))
	}
	if c.KDFIter > 0 {
		ps = append(ps, fmt.Sprintf("PRAGMA kdf_iter = %d", c.KDFIter))
	}
	return ps
}

// AESCBC covers the wxSQLite3 block-cipher formats. Bits is 128 or 256.
type AESCBC struct {
	Bits int
}

func (c AESCBC) Family() string { return fmt.Sprintf("aes%dcbc", c.Bits) }

func (c AESCBC) pragmas() []string {
	return []string{fmt.Sprintf("PRAGMA cipher = 'aes%dcbc'", c.Bits)}
}

// RC4 covers the System.Data.SQLite legacy stream cipher, the weakest
// supported format.
type RC4 struct{}

func (c RC4) Family() string { return "rc4" }

func (c RC4) pragmas() []string {
	return []string{"PRAGMA cipher = 'rc4'", "PRAGMA legacy = 1"}
}

// ProbeEntry is one candidate configuration: a cipher family with its
// parameters plus the key encoding to try it with.
type ProbeEntry struct {
	Cipher Cipher
	Key    KeyEncoding
}

// keyPragma builds the key statement for this entry. PRAGMA key cannot take
// a bind parameter, so the value goes through the shared literal quoting.
func (p ProbeEntry) keyPragma(password string) string {
	switch p.Key {
	case KeyHex:
		return fmt.Sprintf(`PRAGMA key = "x'%s'"`, hex.EncodeToString([]byte(password)))
	case KeyRawHex:
		return fmt.Sprintf(`PRAGMA key = "x'%s'"`, password)
	default:
		return "PRAGMA key = " + sqlite.Literal(password)
	}
}

// ProbeTable returns the candidate configurations tried against a file whose
// cipher is unknown, in fixed priority order: the current SQLCipher major
// version first, then legacy SQLCipher versions, then stream ciphers, then
// raw block ciphers, then the weakest legacy cipher. The order is
// deterministic; iteration stops at the first candidate whose verification
// read succeeds.
func ProbeTable() []ProbeEntry {
	return []ProbeEntry{
		{Cipher: SQLCipher{Version: 4}, Key: KeyPassphrase},
		{Cipher: SQLCipher{Version: 4}, Key: KeyHex},
		{Cipher: SQLCipher{Version: 3}, Key: KeyPassphrase},
		{Cipher: SQLCipher{Version: 3}, Key: KeyHex},
		{Cipher: SQLCipher{Version: 2}, Key: KeyPassphrase},
		{Cipher: SQLCipher{Version: 1}, Key: KeyPassphrase},
		{Cipher: ChaCha20{}, Key: KeyPassphrase},
		{Cipher: ChaCha20{Legacy: 1, KDFIter: 12345}, Key: KeyPassphrase},
		{Cipher: ChaCha20{}, Key: KeyRawHex},
		{Cipher: AESCBC{Bits: 256}, Key: KeyPassphrase},
		{Cipher: AESCBC{Bits: 128}, Key: KeyPassphrase},
		{Cipher: RC4{}, Key: KeyPassphrase},
	}
}

// probeFamilies lists the distinct families of a probe table in order,
// for the exhaustion error.
func probeFamilies(entries []ProbeEntry) []string {
	var families []string
	seen := make(map[string]bool)
	for _, e := range entries {
		f := e.Cipher.Family()
		if !seen[f] {
			seen[f] = true
			families = append(families, f)
		}
	}
	return families
}
