package auction

import (
	"math/big"
	"time"
)

// 成交款分配比例：受益人 975/1000，组织者取剩余部分
const (
	BeneficiaryShareNumerator = 975
	ShareDenominator          = 1000
)

// PriceAt 荷兰式拍卖价格曲线，从startPrice线性下降到reservePrice
// 价格随时间连续变化（纳秒精度），不按整秒阶梯下降，同一秒内的两次查询可能不同
// 先乘后除，中间值用big.Int避免溢出
func PriceAt(startPrice, reservePrice *big.Int, startTime, endTime, now time.Time) *big.Int {
	duration := endTime.Sub(startTime)
	if duration <= 0 || !now.Before(endTime) {
		return new(big.Int).Set(reservePrice)
	}
	elapsed := now.Sub(startTime)
	if elapsed < 0 {
		elapsed = 0
	}

	drop := new(big.Int).Sub(startPrice, reservePrice)
	drop.Mul(drop, big.NewInt(int64(elapsed)))
	drop.Quo(drop, big.NewInt(int64(duration)))
	return new(big.Int).Sub(startPrice, drop)
}

// SplitProceeds 拆分成交价，两部分之和恒等于price
func SplitProceeds(price *big.Int) (beneficiaryShare, organizerShare *big.Int) {
	beneficiaryShare = new(big.Int).Mul(price, big.NewInt(BeneficiaryShareNumerator))
	beneficiaryShare.Quo(beneficiaryShare, big.NewInt(ShareDenominator))
	organizerShare = new(big.Int).Sub(price, beneficiaryShare)
	return beneficiaryShare, organizerShare
}
