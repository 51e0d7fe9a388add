package bot

// User-facing reply texts. Always in the end user's language, never carrying
// diagnostic detail.
const (
	msgWelcome = "ご登録ありがとうございます！\n\n次のステップとして、受付でお渡しした用紙の2枚目のQRコード（登録用QRコード）を読み取ってください。\n\nQRコードを読み取ると、あなたのLINEアカウントと患者情報が紐づけられ、診察の呼び出しをLINEで受け取れるようになります。"

	msgHelp = "以下のコマンドをご利用いただけます：\n\n・「リスト」- 紐づけされている患者情報を確認\n・登録用QRコードを読み取る - 新しい患者情報を紐づけ"

	msgRegistrationMalformed = "登録コードの形式が正しくありません。"
	msgRegistrationFailed    = "登録処理中にエラーが発生しました。QRコードをもう一度確認してください。"
	msgRegistrationExpired   = "登録期限が切れています。受付で新しいQRコードを発行してください。"

	msgNoLinks       = "紐づけされている患者情報はありません。"
	msgListHeader    = "紐づけされている患者情報：\n\n"
	msgListFooter    = "\n\n紐づけを解除したい場合は、番号を送信してください。"
	msgDecodeEntry   = "（復号化エラー）"
	msgInvalidNumber = "指定された番号が見つかりません。「リスト」で確認してください。"

	msgNoSelection    = "解除する患者情報が選択されていません。「リスト」から操作をやり直してください。"
	msgConfirmTimeout = "操作がタイムアウトしました。「リスト」から操作をやり直してください。"
	msgRetryFromList  = "エラーが発生しました。「リスト」から操作をやり直してください。"
	msgGenericError   = "エラーが発生しました。もう一度お試しください。"
)

func msgLinked(name string) string {
	return name + "さんの紐づけが完了しました。\n\n診察の呼び出しをLINEでお知らせします。"
}

func msgAlreadyLinked(name string) string {
	return name + "さんはすでに紐づけされています。"
}

func msgConfirmPrompt(name string) string {
	return name + "さんの紐づけを解除してよろしいですか？\n\n「はい」または「Yes」と返信してください。\n\n（5分以内に返信しない場合、この操作はキャンセルされます）"
}

func msgUnlinked(name string) string {
	return name + "さんの紐づけを解除しました。"
}
