package polymarket

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"

	"github.com/crossvenue/crossarb/pkg/types"
)

const (
	polygonChainID = 137
	zeroAddress    = "0x0000000000000000000000000000000000000000"
	usdcDecimals   = 1e6
)

// signer produces EIP-712 signed orders and the HMAC L2 auth headers the
// CLOB requires on private endpoints.
type signer struct {
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA, always the signing address
	makerAddress  string // proxy wallet when set, else the EOA
	signatureType model.SignatureType
	builder       builder.ExchangeOrderBuilder
	now           func() time.Time
}

// newSigner parses the private key and derives the EOA address from it.
func newSigner(apiKey, secret, passphrase, privateKeyHex, proxyAddress string, signatureType int) (*signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	maker := address
	if proxyAddress != "" {
		maker = proxyAddress
	}
	return &signer{
		apiKey:        apiKey,
		secret:        secret,
		passphrase:    passphrase,
		privateKey:    privateKey,
		address:       address,
		makerAddress:  maker,
		signatureType: model.SignatureType(signatureType),
		builder:       builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
		now:           time.Now,
	}, nil
}

// buildOrder signs a limit order for the ticket. Amounts are raw USDC units
// with six decimals; for a BUY the maker amount is the collateral spent and
// the taker amount is the tokens received.
func (s *signer) buildOrder(ticket *types.OrderTicket) (signedOrderJSON, error) {
	var makerAmount, takerAmount string
	side := model.BUY
	if ticket.Side == types.SideBuy {
		makerAmount = toRawAmount(ticket.LimitPrice * ticket.OrderQty)
		takerAmount = toRawAmount(ticket.OrderQty)
	} else {
		side = model.SELL
		makerAmount = toRawAmount(ticket.OrderQty)
		takerAmount = toRawAmount(ticket.LimitPrice * ticket.OrderQty)
	}

	data := &model.OrderData{
		Maker:         s.makerAddress,
		Taker:         zeroAddress,
		TokenId:       ticket.Token.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        s.address,
		Expiration:    "0",
		SignatureType: s.signatureType,
	}
	order, err := s.builder.BuildSignedOrder(s.privateKey, data, model.CTFExchange)
	if err != nil {
		return signedOrderJSON{}, fmt.Errorf("build signed order: %w", err)
	}

	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}
	return signedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}, nil
}

// l2Headers computes the HMAC auth headers for one request. The secret is
// URL-safe base64 on both sides of the HMAC.
func (s *signer) l2Headers(method, requestPath, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	secretBytes, err := base64.URLEncoding.DecodeString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(timestamp + method + requestPath + body))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"POLY_API_KEY":    s.apiKey,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_PASSPHRASE": s.passphrase,
		"POLY_ADDRESS":    s.address,
	}, nil
}

func toRawAmount(v float64) string {
	return strconv.FormatInt(int64(v*usdcDecimals), 10)
}
