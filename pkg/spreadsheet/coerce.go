package spreadsheet

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal 宽松地把单元格转换为数字：
// 取开头的数字部分（"12.5kg" -> 12.5），千分位逗号会被去掉，无法识别时返回0。
func ToDecimal(value string) decimal.Decimal {
	prefix := numericPrefix(strings.ReplaceAll(strings.TrimSpace(value), ",", ""))
	if prefix == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToInt 转换为整数，小数部分直接截断，超出 int32 范围时返回0
func ToInt(value string) int {
	d := ToDecimal(value).Truncate(0)
	if d.LessThan(minInt) || d.GreaterThan(maxInt) {
		return 0
	}
	return int(d.IntPart())
}

// ToFixed 按 decimal(precision, scale) 列转换：先四舍五入到 scale 位，放不下时返回0
func ToFixed(value string, precision, scale int32) decimal.Decimal {
	d := ToDecimal(value).Round(scale)
	if !FitsColumn(d, precision, scale) {
		return decimal.Zero
	}
	return d
}

// FitsColumn 判断 d 能否存入 decimal(precision, scale) 列
func FitsColumn(d decimal.Decimal, precision, scale int32) bool {
	return d.Round(scale).Abs().LessThan(decimal.New(1, precision-scale))
}

var (
	minInt = decimal.NewFromInt(math.MinInt32)
	maxInt = decimal.NewFromInt(math.MaxInt32)
)

// maxExponent 科学计数法允许的最大指数
const maxExponent = 18

// numericPrefix 返回形如 [+-]digits[.digits][e[+-]digits] 的最长前缀，指数过大时返回空串
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if frac > 0 || digits > 0 {
			digits += frac
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp, n := 0, 0
		for j < len(s) && isDigit(s[j]) {
			if exp <= maxExponent {
				exp = exp*10 + int(s[j]-'0')
			}
			j++
			n++
		}
		if n > 0 {
			if exp > maxExponent {
				return ""
			}
			end = j
		}
	}
	prefix := strings.TrimSuffix(s[:end], ".")
	switch {
	case strings.HasPrefix(prefix, "."):
		prefix = "0" + prefix
	case strings.HasPrefix(prefix, "-."), strings.HasPrefix(prefix, "+."):
		prefix = prefix[:1] + "0" + prefix[1:]
	}
	return prefix
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
