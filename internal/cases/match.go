package cases

import (
	"reflect"
	"regexp"
	"strings"
)

// isPattern 以 ^ 开头或 $ 结尾的期望值按正则表达式处理
func isPattern(expected string) bool {
	return strings.HasPrefix(expected, "^") || strings.HasSuffix(expected, "$")
}

// matchText 比较页面上的文本，支持正则表达式
func matchText(actual, expected string) (bool, error) {
	if !isPattern(expected) {
		return actual == expected, nil
	}
	return regexp.MatchString(expected, actual)
}

// validateValue 验证单个值，支持正则表达式
func validateValue(actual, expected any) bool {
	// 处理嵌套的map
	if expectedMap, ok := expected.(map[string]any); ok {
		actualMap, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		return validateMap(actualMap, expectedMap)
	}

	// 处理数组
	if expectedSlice, ok := expected.([]any); ok {
		actualSlice, ok := actual.([]any)
		if !ok {
			return false
		}
		return validateSlice(actualSlice, expectedSlice)
	}

	if expectedStr, ok := expected.(string); ok {
		actualStr, ok := actual.(string)
		if !ok {
			return false
		}
		matched, err := matchText(actualStr, expectedStr)
		return err == nil && matched
	}

	// 其他类型直接比较
	return reflect.DeepEqual(actual, expected)
}

// validateSlice 期望数组是实际数组的前缀
func validateSlice(actual, expected []any) bool {
	if len(actual) < len(expected) {
		return false
	}
	for i, expectedValue := range expected {
		if !validateValue(actual[i], expectedValue) {
			return false
		}
	}
	return true
}

// validateMap 递归验证期望中的所有字段，实际结果可以有多余字段
func validateMap(actual, expected map[string]any) bool {
	for key, expectedValue := range expected {
		actualValue, exists := actual[key]
		if !exists {
			return false
		}
		if !validateValue(actualValue, expectedValue) {
			return false
		}
	}
	return true
}

// validateTopLevel 只比较第一层字段，嵌套对象要求完全相等
func validateTopLevel(actual, expected map[string]any) bool {
	for key, expectedValue := range expected {
		actualValue, exists := actual[key]
		if !exists {
			return false
		}
		if expectedStr, ok := expectedValue.(string); ok && isPattern(expectedStr) {
			actualStr, ok := actualValue.(string)
			if !ok {
				return false
			}
			if matched, _ := regexp.MatchString(expectedStr, actualStr); !matched {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(actualValue, expectedValue) {
			return false
		}
	}
	return true
}
