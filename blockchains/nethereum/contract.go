package nethereum


import (
	"benchdriver/core"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)


// Layout of a compiled contract artifact.
// Hardhat stores the bytecode as a hex string, Foundry as an object with an
// `object` field: both are accepted.
//
type artifactFile struct {
	ContractName  string           `json:"contractName"`
	ABI           json.RawMessage  `json:"abi"`
	Bytecode      json.RawMessage  `json:"bytecode"`
}

type foundryBytecode struct {
	Object  string  `json:"object"`
}


func LoadArtifact(path string) (*core.ContractArtifact, error) {
	var content []byte
	var err error

	content, err = os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseArtifact(content, strings.TrimSuffix(filepath.Base(path),
		filepath.Ext(path)))
}

func parseArtifact(content []byte, fallbackName string) (*core.ContractArtifact, error) {
	var foundry foundryBytecode
	var file artifactFile
	var code []byte
	var text string
	var err error

	err = json.Unmarshal(content, &file)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("artifact has no abi")
	}

	if len(file.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode")
	}

	err = json.Unmarshal(file.Bytecode, &text)
	if err != nil {
		err = json.Unmarshal(file.Bytecode, &foundry)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact bytecode: %w",
				err)
		}
		text = foundry.Object
	}

	code, err = hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid artifact bytecode: %w", err)
	}

	if file.ContractName == "" {
		file.ContractName = fallbackName
	}

	return &core.ContractArtifact{
		Name: file.ContractName,
		Bytecode: code,
		ABI: file.ABI,
	}, nil
}


// The init code of a contract creation: bytecode followed by the ABI
// encoded constructor arguments.
//
func deploymentCode(artifact *core.ContractArtifact, args []interface{}) ([]byte, error) {
	var inputs abi.Arguments
	var values []interface{}
	var parsed abi.ABI
	var packed []byte
	var err error
	var i int

	if artifact == nil {
		return nil, encodingError("missing contract artifact", nil)
	}

	if len(artifact.Bytecode) == 0 {
		return nil, encodingError(fmt.Sprintf("contract %s has no "+
			"bytecode", artifact.Name), nil)
	}

	parsed, err = abi.JSON(bytes.NewReader(artifact.ABI))
	if err != nil {
		return nil, encodingError(fmt.Sprintf("contract %s has an "+
			"invalid abi", artifact.Name), err)
	}

	inputs = parsed.Constructor.Inputs

	if len(args) != len(inputs) {
		return nil, encodingError(fmt.Sprintf("constructor of %s "+
			"takes %d arguments, got %d", artifact.Name,
			len(inputs), len(args)), nil)
	}

	values = make([]interface{}, len(args))
	for i = range args {
		values[i], err = coerceArgument(inputs[i].Type, args[i])
		if err != nil {
			return nil, encodingError(fmt.Sprintf("constructor "+
				"argument %d (%s %s) of %s: %s", i,
				inputs[i].Type.String(), inputs[i].Name,
				artifact.Name, err.Error()), err)
		}
	}

	packed, err = inputs.Pack(values...)
	if err != nil {
		return nil, encodingError(fmt.Sprintf("cannot encode "+
			"constructor arguments of %s", artifact.Name), err)
	}

	return append(append([]byte{}, artifact.Bytecode...), packed...), nil
}

func encodingError(reason string, cause error) error {
	return core.NewError(core.STEP_BUILD, core.ErrEncoding, reason, cause)
}

// Signing failures which do not come from the key.
//
func signEncodingError(reason string, cause error) error {
	return core.NewError(core.STEP_SIGN, core.ErrEncoding, reason, cause)
}


// Convert a loosely typed value (typically read from a command line) into
// the Go type the abi packer expects for `typ`.
// Values of other abi types are passed unchanged and checked by the packer.
//
func coerceArgument(typ abi.Type, value interface{}) (interface{}, error) {
	var b bool
	var err error

	switch typ.T {
	case abi.UintTy, abi.IntTy:
		return coerceInteger(typ, value)

	case abi.AddressTy:
		switch v := value.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("invalid address '%s'", v)
			}
			return common.HexToAddress(v), nil
		}

	case abi.BoolTy:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err = strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid boolean '%s'", v)
			}
			return b, nil
		}
	}

	return value, nil
}

func coerceInteger(typ abi.Type, value interface{}) (interface{}, error) {
	var n *big.Int
	var ok bool

	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		n = new(big.Int).Set(v)
	case int:
		n = big.NewInt(int64(v))
	case int32:
		n = big.NewInt(int64(v))
	case int64:
		n = big.NewInt(v)
	case uint:
		n = new(big.Int).SetUint64(uint64(v))
	case uint32:
		n = new(big.Int).SetUint64(uint64(v))
	case uint64:
		n = new(big.Int).SetUint64(v)
	case string:
		n, ok = new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer '%s'", v)
		}
	default:
		return nil, fmt.Errorf("cannot use %T as integer", value)
	}

	if typ.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s", n)
		}
		if n.BitLen() > typ.Size {
			return nil, fmt.Errorf("value %s overflows", n)
		}
	} else {
		if n.BitLen() >= typ.Size {
			return nil, fmt.Errorf("value %s overflows", n)
		}
	}

	if typ.Size > 64 {
		return n, nil
	}

	return sizedInteger(typ, n), nil
}

// The abi packer wants the exact Go type for integers up to 64 bits, and
// go-ethereum only maps the 8, 16, 32 and 64 widths onto Go types.
//
func sizedInteger(typ abi.Type, n *big.Int) interface{} {
	if typ.T == abi.UintTy {
		switch typ.Size {
		case 8:
			return uint8(n.Uint64())
		case 16:
			return uint16(n.Uint64())
		case 32:
			return uint32(n.Uint64())
		case 64:
			return n.Uint64()
		}
	} else {
		switch typ.Size {
		case 8:
			return int8(n.Int64())
		case 16:
			return int16(n.Int64())
		case 32:
			return int32(n.Int64())
		case 64:
			return n.Int64()
		}
	}

	return n
}
