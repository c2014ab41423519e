package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestERC721ABI(t *testing.T) {
	parsed, err := ParseERC721ABI()
	require.NoError(t, err)

	for _, name := range []string{"ownerOf", "getApproved", "isApprovedForAll", "safeTransferFrom"} {
		assert.Contains(t, parsed.Methods, name)
	}

	from := common.HexToAddress("0x1000000000000000000000000000000000000001")
	to := common.HexToAddress("0x2000000000000000000000000000000000000002")
	data, err := parsed.Pack("safeTransferFrom", from, to, big.NewInt(42))
	require.NoError(t, err)
	// safeTransferFrom(address,address,uint256)
	assert.Equal(t, crypto.Keccak256([]byte("safeTransferFrom(address,address,uint256)"))[:4], data[:4])
	assert.Len(t, data, 4+3*32)

	out, err := parsed.Methods["ownerOf"].Outputs.Unpack(common.LeftPadBytes(to.Bytes(), 32))
	require.NoError(t, err)
	assert.Equal(t, to, out[0].(common.Address))
}
