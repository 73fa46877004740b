package chain

import (
	"fmt"
	"math/big"

	"nhbvault/crypto"
	"nhbvault/native/vault"
)

// Pool adapts the node's staking pool RPC surface to the engine's RewardPool
// interface.
type Pool struct {
	client *Client
}

// NewPool binds a reward pool adapter to the RPC client.
func NewPool(client *Client) *Pool {
	return &Pool{client: client}
}

var _ vault.RewardPool = (*Pool)(nil)

func (p *Pool) Deposit(amount *big.Int, onBehalfOf crypto.Address) (*big.Int, error) {
	params, err := p.client.signed(map[string]string{
		"amount":     amount.String(),
		"onBehalfOf": onBehalfOf.String(),
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Shares string `json:"shares"`
	}
	if err := p.client.call("pool_deposit", params, &result); err != nil {
		return nil, err
	}
	return parseAmount(result.Shares)
}

func (p *Pool) Withdraw(amount *big.Int, claimExtras bool) error {
	params, err := p.client.signed(map[string]any{
		"amount":      amount.String(),
		"claimExtras": claimExtras,
	})
	if err != nil {
		return err
	}
	return p.client.call("pool_withdraw", params, nil)
}

func (p *Pool) BalanceOf(account crypto.Address) (*big.Int, error) {
	var result amountResult
	if err := p.client.call("pool_balanceOf", map[string]string{"account": account.String()}, &result); err != nil {
		return nil, err
	}
	return parseAmount(result.Amount)
}

func (p *Pool) GetReward() error {
	params, err := p.client.signed(map[string]string{})
	if err != nil {
		return err
	}
	return p.client.call("pool_getReward", params, nil)
}

func (p *Pool) Earned(account crypto.Address) (*big.Int, error) {
	var result amountResult
	if err := p.client.call("pool_earned", map[string]string{"account": account.String()}, &result); err != nil {
		return nil, err
	}
	return parseAmount(result.Amount)
}

// Oracle adapts the node's price feed RPC surface to the engine's PriceOracle
// interface. The node rejects stale or unsupported feeds server-side; those
// rejections surface here as errors, never as zero prices.
type Oracle struct {
	client *Client
}

// NewOracle binds a price oracle adapter to the RPC client.
func NewOracle(client *Client) *Oracle {
	return &Oracle{client: client}
}

var _ vault.PriceOracle = (*Oracle)(nil)

func (o *Oracle) Price(token crypto.Address) (*big.Int, error) {
	var result struct {
		Price string `json:"price"`
	}
	if err := o.client.call("oracle_price", map[string]string{"token": token.String()}, &result); err != nil {
		return nil, err
	}
	price, err := parseAmount(result.Price)
	if err != nil {
		return nil, err
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("chain client: oracle returned non-positive price for %s", token.String())
	}
	return price, nil
}

// TokenClient adapts one token ledger to the engine's Token interface. The
// client is bound to the vault module identity, so Transfer spends module
// custody while TransferFrom relies on the source account's standing approval.
type TokenClient struct {
	client *Client
	addr   crypto.Address
	module crypto.Address
}

// NewToken binds a token adapter for the ledger at addr, spending from the
// module custody account.
func NewToken(client *Client, addr, module crypto.Address) *TokenClient {
	return &TokenClient{client: client, addr: addr, module: module}
}

var _ vault.Token = (*TokenClient)(nil)

func (t *TokenClient) Address() crypto.Address { return t.addr }

func (t *TokenClient) TotalSupply() (*big.Int, error) {
	var result amountResult
	if err := t.client.call("token_totalSupply", map[string]string{"token": t.addr.String()}, &result); err != nil {
		return nil, err
	}
	return parseAmount(result.Amount)
}

func (t *TokenClient) Transfer(to crypto.Address, amount *big.Int) error {
	params, err := t.client.signed(map[string]string{
		"token":  t.addr.String(),
		"from":   t.module.String(),
		"to":     to.String(),
		"amount": amount.String(),
	})
	if err != nil {
		return err
	}
	return t.client.call("token_transfer", params, nil)
}

func (t *TokenClient) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	params, err := t.client.signed(map[string]string{
		"token":  t.addr.String(),
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount.String(),
	})
	if err != nil {
		return err
	}
	return t.client.call("token_transferFrom", params, nil)
}
