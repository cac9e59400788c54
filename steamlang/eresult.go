package steamlang

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type EResult int32

//goland:noinspection GoUnusedConst
const (
	InvalidResult                          EResult = 0
	OKResult                               EResult = 1
	FailResult                             EResult = 2
	NoConnectionResult                     EResult = 3
	InvalidPasswordResult                  EResult = 5
	LoggedInElsewhereResult                EResult = 6
	InvalidProtocolVerResult               EResult = 7
	InvalidParamResult                     EResult = 8
	BusyResult                             EResult = 10
	InvalidStateResult                     EResult = 11
	AccessDeniedResult                     EResult = 15
	TimeoutResult                          EResult = 16
	BannedResult                           EResult = 17
	AccountNotFoundResult                  EResult = 18
	ServiceUnavailableResult               EResult = 20
	NotLoggedOnResult                      EResult = 21
	PendingResult                          EResult = 22
	LimitExceededResult                    EResult = 25
	RevokedResult                          EResult = 26
	ExpiredResult                          EResult = 27
	LogonSessionReplacedResult             EResult = 34
	ConnectFailedResult                    EResult = 35
	HandshakeFailedResult                  EResult = 36
	RemoteDisconnectResult                 EResult = 38
	AccountDisabledResult                  EResult = 43
	TryAnotherCMResult                     EResult = 48
	AlreadyLoggedInElsewhereResult         EResult = 50
	AccountLogonDeniedResult               EResult = 63
	InvalidLoginAuthCodeResult             EResult = 65
	AccountLogonDeniedNoMailSentResult     EResult = 66
	ExpiredLoginAuthCodeResult             EResult = 71
	AccountLockedResult                    EResult = 73
	RateLimitExceededResult                EResult = 84
	AccountLoginDeniedNeedTwoFactorResult  EResult = 85
	AccountLoginDeniedThrottleResult       EResult = 87
	TwoFactorCodeMismatchResult            EResult = 88
	TimeNotSyncedResult                    EResult = 93
	InvalidSignatureResult                 EResult = 121
	CachedCredentialInvalidResult          EResult = 126
)

var resultNames = map[EResult]string{
	InvalidResult:                         "Invalid",
	OKResult:                              "OK",
	FailResult:                            "Fail",
	NoConnectionResult:                    "NoConnection",
	InvalidPasswordResult:                 "InvalidPassword",
	LoggedInElsewhereResult:               "LoggedInElsewhere",
	InvalidProtocolVerResult:              "InvalidProtocolVer",
	InvalidParamResult:                    "InvalidParam",
	BusyResult:                            "Busy",
	InvalidStateResult:                    "InvalidState",
	AccessDeniedResult:                    "AccessDenied",
	TimeoutResult:                         "Timeout",
	BannedResult:                          "Banned",
	AccountNotFoundResult:                 "AccountNotFound",
	ServiceUnavailableResult:              "ServiceUnavailable",
	NotLoggedOnResult:                     "NotLoggedOn",
	PendingResult:                         "Pending",
	LimitExceededResult:                   "LimitExceeded",
	RevokedResult:                         "Revoked",
	ExpiredResult:                         "Expired",
	LogonSessionReplacedResult:            "LogonSessionReplaced",
	ConnectFailedResult:                   "ConnectFailed",
	HandshakeFailedResult:                 "HandshakeFailed",
	RemoteDisconnectResult:                "RemoteDisconnect",
	AccountDisabledResult:                 "AccountDisabled",
	TryAnotherCMResult:                    "TryAnotherCM",
	AlreadyLoggedInElsewhereResult:        "AlreadyLoggedInElsewhere",
	AccountLogonDeniedResult:              "AccountLogonDenied",
	InvalidLoginAuthCodeResult:            "InvalidLoginAuthCode",
	AccountLogonDeniedNoMailSentResult:    "AccountLogonDeniedNoMailSent",
	ExpiredLoginAuthCodeResult:            "ExpiredLoginAuthCode",
	AccountLockedResult:                   "AccountLocked",
	RateLimitExceededResult:               "RateLimitExceeded",
	AccountLoginDeniedNeedTwoFactorResult: "AccountLoginDeniedNeedTwoFactor",
	AccountLoginDeniedThrottleResult:      "AccountLoginDeniedThrottle",
	TwoFactorCodeMismatchResult:           "TwoFactorCodeMismatch",
	TimeNotSyncedResult:                   "TimeNotSynced",
	InvalidSignatureResult:                "InvalidSignature",
	CachedCredentialInvalidResult:         "CachedCredentialInvalid",
}

func (r EResult) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "EResult(" + strconv.Itoa(int(r)) + ")"
}

// IsCodeRejection reports whether a Steam Guard code was refused and another one may be tried.
func (r EResult) IsCodeRejection() bool {
	switch r {
	case InvalidLoginAuthCodeResult, TwoFactorCodeMismatchResult, ExpiredLoginAuthCodeResult:
		return true
	}
	return false
}

// ResultError is returned when steam answers a web API call with a non-OK X-eresult header.
type ResultError struct {
	Result  EResult
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("steam responded with non-OK Result: %v", e.Result)
	}
	return fmt.Sprintf("steam responded with non-OK Result: %v, %s", e.Result, e.Message)
}

// ResultOf extracts the EResult carried by err, or InvalidResult when there is none.
func ResultOf(err error) EResult {
	var resultErr *ResultError
	if errors.As(err, &resultErr) {
		return resultErr.Result
	}
	return InvalidResult
}

func EnsureSuccessResponse(response *http.Response) error {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed with status %v", response.Request.Method, response.Request.URL.Path, response.StatusCode)
	}

	return nil
}

func EnsureEResultResponse(httpResponse *http.Response) error {
	eResults := httpResponse.Header.Values("X-Eresult")
	if len(eResults) == 0 {
		return nil
	}

	eResult := InvalidResult
	for _, result := range eResults {
		if parsedResult, parseErr := strconv.ParseInt(result, 10, 32); parseErr == nil {
			eResult = EResult(parsedResult)
			break
		}
	}

	if eResult == OKResult {
		return nil
	}

	return &ResultError{
		Result:  eResult,
		Message: strings.Join(httpResponse.Header.Values("X-Error_message"), "; "),
	}
}
