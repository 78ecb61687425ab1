package card

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

const (
	// ShareIntentURL is the X/Twitter compose endpoint
	ShareIntentURL = "https://twitter.com/intent/tweet"

	// ShareMention is the account tagged in every share
	ShareMention = "@zkp2p"
)

// ShareText is the prefilled post announcing the filled volume
func ShareText(volume decimal.Decimal) string {
	return fmt.Sprintf("I've filled %s on %s 🔥", FormatWholeUSD(volume), ShareMention)
}

// ShareIntent builds the compose URL carrying ShareText
func ShareIntent(volume decimal.Decimal) string {
	query := url.Values{"text": []string{ShareText(volume)}}
	return ShareIntentURL + "?" + query.Encode()
}
