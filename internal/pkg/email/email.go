package email

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendDaily 发送每日阅读邮件，返回本地生成的 message id
func (s *Service) SendDaily(to, nickname, topic string, article *model.Article, readLink string) (string, error) {
	subject := fmt.Sprintf("今日の英語リーディング - %s", topic)

	var words strings.Builder
	for _, w := range article.ImportantWords {
		words.WriteString(fmt.Sprintf(`<li style="margin: 4px 0;">%s</li>`, w))
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">%s</h2>
        <p>%s さん、今日の記事をお届けします。</p>
        <div style="background-color: #f3f4f6; padding: 15px; margin: 20px 0;">
            %s
        </div>
        <h3>重要単語</h3>
        <ul>%s</ul>
        <h3>日本語訳</h3>
        <p style="color: #6b7280;">%s</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">読み終えた</a>
        </div>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">このメールはシステムにより自動送信されています。</p>
    </div>
</body>
</html>
`, topic, nickname, article.EnglishText, words.String(), article.JapaneseTranslation, readLink)

	if err := s.sendHTML(to, subject, body); err != nil {
		return "", err
	}
	return newMessageID(), nil
}

// SendEmailChangeConfirmation 发送配信邮箱变更确认邮件
// 必须发往新地址：点击即证明对新地址的所有权
func (s *Service) SendEmailChangeConfirmation(to, confirmLink string) error {
	subject := "メールアドレス変更の確認"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">メールアドレス変更の確認</h2>
        <p>配信先メールアドレスの変更リクエストを受け付けました。</p>
        <p>下のボタンをクリックして変更を確定してください。</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">変更を確定する</a>
        </div>
        <p>リンクの有効期限は 24 時間です。</p>
        <p>心当たりのない場合はこのメールを無視してください。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">このメールはシステムにより自動送信されています。</p>
    </div>
</body>
</html>
`, confirmLink)

	return s.sendHTML(to, subject, body)
}

// SendTrialNotice 试用开始通知
func (s *Service) SendTrialNotice(to string, trialEnd *time.Time) error {
	subject := "無料トライアル開始のお知らせ"

	period := "トライアル期間中"
	if trialEnd != nil {
		period = trialEnd.In(time.FixedZone("JST", 9*60*60)).Format("2006年1月2日") + " まで"
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">無料トライアルが始まりました</h2>
        <p>スタンダードプランの無料トライアルを開始しました。</p>
        <p>%s、毎日の英語リーディングをお楽しみいただけます。</p>
        <p>期間中に解約した場合、料金は発生しません。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">このメールはシステムにより自動送信されています。</p>
    </div>
</body>
</html>
`, period)

	return s.sendHTML(to, subject, body)
}

// SendVerificationCode 发送注册验证码
func (s *Service) SendVerificationCode(to, code string) error {
	subject := "認証コード"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">メールアドレスの確認</h2>
        <p>登録ありがとうございます。認証コードは以下の通りです。</p>
        <div style="background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 24px; font-weight: bold; letter-spacing: 5px; margin: 20px 0;">
            %s
        </div>
        <p>認証コードの有効期限は 24 時間です。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">このメールはシステムにより自動送信されています。</p>
    </div>
</body>
</html>
`, code)

	return s.sendHTML(to, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := make(map[string]string)
	headers["From"] = s.cfg.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}

func newMessageID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
