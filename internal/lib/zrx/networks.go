package zrx

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/TxnLab/stakeplan/internal/lib/misc"
)

type Network struct {
	Name         string
	ChainID      uint64
	StakingProxy common.Address
	ZrxToken     common.Address
	BackendURL   string
	// sent as 0x-api-key to the staking backend if set
	BackendAPIKey string
}

func (n Network) String() string {
	return fmt.Sprintf("Network: %s, ChainID: %d, StakingProxy: %s, ZrxToken: %s, BackendURL: %s, BackendAPIKey: %s",
		n.Name, n.ChainID, n.StakingProxy.Hex(), n.ZrxToken.Hex(), n.BackendURL, misc.MaskSecret(n.BackendAPIKey))
}

// GetNetwork returns the contract addresses and backend for the named network, w/ any env overrides
// (ZRX_STAKING_PROXY, ZRX_TOKEN, ZRX_CHAIN_ID, STAKING_BACKEND_URL, STAKING_BACKEND_API_KEY) applied.
func GetNetwork(name string) (Network, error) {
	network, err := getDefaults(name)
	if err != nil {
		return Network{}, err
	}

	if proxy := os.Getenv("ZRX_STAKING_PROXY"); proxy != "" {
		if !common.IsHexAddress(proxy) {
			return Network{}, fmt.Errorf("ZRX_STAKING_PROXY is not a valid address: %s", proxy)
		}
		network.StakingProxy = common.HexToAddress(proxy)
	}
	if token := os.Getenv("ZRX_TOKEN"); token != "" {
		if !common.IsHexAddress(token) {
			return Network{}, fmt.Errorf("ZRX_TOKEN is not a valid address: %s", token)
		}
		network.ZrxToken = common.HexToAddress(token)
	}
	if chainID := os.Getenv("ZRX_CHAIN_ID"); chainID != "" {
		network.ChainID, err = strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			return Network{}, fmt.Errorf("ZRX_CHAIN_ID is not a number: %w", err)
		}
	}
	if backendURL := os.Getenv("STAKING_BACKEND_URL"); backendURL != "" {
		network.BackendURL = backendURL
	}
	network.BackendAPIKey = misc.GetSecret("STAKING_BACKEND_API_KEY")
	return network, nil
}

func getDefaults(name string) (Network, error) {
	switch name {
	case "mainnet":
		return Network{
			Name:         name,
			ChainID:      1,
			StakingProxy: common.HexToAddress("0xa26e80e7dea86279c6d778d702cc413e6cffa777"),
			ZrxToken:     common.HexToAddress("0xe41d2489571d322189246dafa5ebde1f4699f498"),
			BackendURL:   "https://staking.api.0x.org",
		}, nil
	case "kovan":
		return Network{
			Name:         name,
			ChainID:      42,
			StakingProxy: common.HexToAddress("0xbab9145f1d57cd4bb0c9aa2d1ece0a5b6e734d34"),
			ZrxToken:     common.HexToAddress("0x2002d3812f58e35f0ea1ffbf80a75a38c32175fa"),
			BackendURL:   "https://kovan.staking.api.0x.org",
		}, nil
	case "local":
		// addresses must come from the environment
		return Network{
			Name:       name,
			ChainID:    1337,
			BackendURL: "http://localhost:3000",
		}, nil
	}
	return Network{}, fmt.Errorf("unknown network:%s", name)
}
