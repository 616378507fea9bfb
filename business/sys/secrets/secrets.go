// Package secrets loads the forging.delegates layer of the node's
// secrets file: the list of encrypted delegate keys a node can forge
// blocks with, and the passphrase needed to unlock each one.
//
// This is split from the rest of the node's configuration (parsed by
// ardanlabs/conf from flags and environment variables) because it alone
// needs a real layered-file format: operators hand-edit or generate it
// once and check it into a deploy, rather than pass it as flags.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"

	"github.com/ardanlabs/dposchain/foundation/blockchain/forger"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

// delegateEntry is the on-disk shape of one forging.delegates row.
type delegateEntry struct {
	Salt       string `mapstructure:"salt"`
	Nonce      string `mapstructure:"nonce"`
	Ciphertext string `mapstructure:"ciphertext"`
	Passphrase string `mapstructure:"passphrase"`
}

// Load reads path (any format Viper supports: yaml, json, toml) and
// returns the forging.delegates entries as forger.Secret values ready to
// hand to Forger.LoadDelegate. A missing file is not an error: a node
// with no delegate keys loaded simply never forges.
func Load(path string) ([]forger.Secret, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("secrets: reading %s: %w", path, err)
	}

	var entries []delegateEntry
	if err := v.UnmarshalKey("forging.delegates", &entries); err != nil {
		return nil, fmt.Errorf("secrets: decoding forging.delegates: %w", err)
	}

	secrets := make([]forger.Secret, len(entries))
	for i, e := range entries {
		secrets[i] = forger.Secret{
			Mnemonic: signature.EncryptedSecret{
				Salt:       e.Salt,
				Nonce:      e.Nonce,
				Ciphertext: e.Ciphertext,
			},
			Passphrase: e.Passphrase,
		}
	}

	return secrets, nil
}
