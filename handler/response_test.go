package handler

import (
	"fmt"
	"net/http"
	"testing"

	"nft_auction/auction"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: tx 0xabc: context deadline exceeded", auction.ErrTransferUnconfirmed), http.StatusAccepted},
		{fmt.Errorf("%w: reverted", auction.ErrAssetTransferFailed), http.StatusBadGateway},
		{fmt.Errorf("%w: rejected", auction.ErrWithdrawFailed), http.StatusBadGateway},
		{auction.ErrAuctionAlreadyEnded, http.StatusConflict},
		{&auction.BidNotHighEnoughError{}, http.StatusBadRequest},
		{fmt.Errorf("%w: no funds", auction.ErrPaymentFailed), http.StatusPaymentRequired},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
